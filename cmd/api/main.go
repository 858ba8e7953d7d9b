package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/whatsgood/brand-retrieval/internal/adapters/http"
	"github.com/whatsgood/brand-retrieval/internal/bootstrap"
	"github.com/whatsgood/brand-retrieval/internal/config"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
	"github.com/whatsgood/brand-retrieval/internal/observability/metrics"
)

const serviceName = "retrieval-api"

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

	m := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Observer:        m,
		BreakerListener: m.RecordBreakerState,
		CacheRecorder:   m,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if n, err := app.Retrieval.RebuildLexicalIndex(ctx); err != nil {
		logger.Warn("initial_lexical_rebuild_failed", "error", err)
	} else {
		logger.Info("initial_lexical_rebuild", "documents", n)
	}

	go func() {
		err := app.Queue.SubscribeIndexUpdated(ctx, func(handlerCtx context.Context, indexed int) error {
			logger.Info("index_updated_received", "indexed", indexed)
			_, err := app.Retrieval.RebuildLexicalIndex(handlerCtx)
			return err
		})
		if err != nil {
			logger.Error("index_subscription_failed", "error", err)
		}
	}()

	router := httpadapter.NewRouter(app.Retrieval, app.Feedback, app.Feedback, app.Queue, httpadapter.Options{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		MaxInFlight:    64,
		Middleware:     []func(http.Handler) http.Handler{m.Middleware},
		MetricsHandler: m.Handler(),
	}).Handler()

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
