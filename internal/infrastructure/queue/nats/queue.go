package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/whatsgood/brand-retrieval/internal/core/ports"
	"github.com/whatsgood/brand-retrieval/internal/infrastructure/resilience"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
)

const (
	DefaultArticleReadySubject = "articles.ready"
	DefaultIndexUpdatedSubject = "articles.indexed"

	workerQueueGroup = "index-workers"
)

type Queue struct {
	conn           *nats.Conn
	readySubject   string
	indexedSubject string
	executor       *resilience.Executor
}

var _ ports.MessageQueue = (*Queue)(nil)

type Options struct {
	ArticleReadySubject  string
	IndexUpdatedSubject  string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	Executor             *resilience.Executor
}

type indexUpdatedMessage struct {
	Indexed int       `json:"indexed"`
	At      time.Time `json:"at"`
}

func New(url string) (*Queue, error) {
	return NewWithOptions(url, Options{})
}

func NewWithOptions(url string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	logger := logging.FromContext(context.Background())
	conn, err := nats.Connect(
		url,
		nats.Name("brand-retrieval"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		readySubject:   subjectOrDefault(options.ArticleReadySubject, DefaultArticleReadySubject),
		indexedSubject: subjectOrDefault(options.IndexUpdatedSubject, DefaultIndexUpdatedSubject),
		executor:       options.Executor,
	}, nil
}

func subjectOrDefault(subject, fallback string) string {
	if s := strings.TrimSpace(subject); s != "" {
		return s
	}
	return fallback
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishArticleReady(ctx context.Context, articleID string) error {
	return q.publish(ctx, q.readySubject, []byte(articleID))
}

func (q *Queue) PublishIndexUpdated(ctx context.Context, indexed int) error {
	payload, err := encodeIndexUpdated(indexed, time.Now().UTC())
	if err != nil {
		return err
	}
	return q.publish(ctx, q.indexedSubject, payload)
}

// SubscribeArticleReady delivers each ready article to exactly one worker of
// the queue group. It blocks until ctx is done, then drains.
func (q *Queue) SubscribeArticleReady(ctx context.Context, handler func(context.Context, string) error) error {
	return q.consume(ctx, q.readySubject, workerQueueGroup, func(handlerCtx context.Context, data []byte) error {
		return handler(handlerCtx, string(data))
	})
}

// SubscribeIndexUpdated delivers every notification to every subscriber.
func (q *Queue) SubscribeIndexUpdated(ctx context.Context, handler func(context.Context, int) error) error {
	return q.consume(ctx, q.indexedSubject, "", func(handlerCtx context.Context, data []byte) error {
		indexed, err := decodeIndexUpdated(data)
		if err != nil {
			return err
		}
		return handler(handlerCtx, indexed)
	})
}

func (q *Queue) publish(ctx context.Context, subject string, payload []byte) error {
	err := q.executor.Execute(ctx, "nats.publish", func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}, classifyNATSError)
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}

func (q *Queue) consume(ctx context.Context, subject, group string, handle func(context.Context, []byte) error) error {
	logger := logging.FromContext(ctx)
	cb := func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handle(handlerCtx, msg.Data); err != nil {
			logger.Error("queue_handler_failed", "subject", subject, "payload", string(msg.Data), "error", err)
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if group != "" {
		sub, err = q.conn.QueueSubscribe(subject, group, cb)
	} else {
		sub, err = q.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeIndexUpdated(indexed int, at time.Time) ([]byte, error) {
	payload, err := json.Marshal(indexUpdatedMessage{Indexed: indexed, At: at})
	if err != nil {
		return nil, fmt.Errorf("encode index notification: %w", err)
	}
	return payload, nil
}

// decodeIndexUpdated accepts the JSON envelope and a bare integer.
func decodeIndexUpdated(data []byte) (int, error) {
	trimmed := strings.TrimSpace(string(data))
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n, nil
	}
	var msg indexUpdatedMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return 0, fmt.Errorf("decode index notification: %w", err)
	}
	return msg.Indexed, nil
}

func classifyNATSError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
