package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/whatsgood/brand-retrieval/internal/bootstrap"
	"github.com/whatsgood/brand-retrieval/internal/config"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
	"github.com/whatsgood/brand-retrieval/internal/observability/metrics"
)

const serviceName = "retrieval-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(serviceName, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	m := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		BreakerListener: m.RecordBreakerState,
		CacheRecorder:   m,
		NotifyRecorder:  m.RecordNotification,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSReadySubject)
	err = app.Queue.SubscribeArticleReady(ctx, func(handlerCtx context.Context, articleID string) error {
		indexCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		started := time.Now()
		m.StartArticle()
		err := app.Indexer.IndexByID(indexCtx, articleID)
		m.FinishArticle(time.Since(started), err)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}
}
