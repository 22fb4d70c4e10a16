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

	httpadapter "github.com/kirillkom/knowledge-assistant/internal/adapters/http"
	"github.com/kirillkom/knowledge-assistant/internal/bootstrap"
	"github.com/kirillkom/knowledge-assistant/internal/config"
	"github.com/kirillkom/knowledge-assistant/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)
	if err != nil {
		logger.Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "api", logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Queue != nil {
		go func() {
			logger.Info("ingest_consumer_started", "subject", cfg.NATSSubject)
			if err := app.ConsumeIngest(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("ingest_consumer_stopped", "error", err)
			}
		}()
	}

	router := httpadapter.NewRouter(cfg, app.IngestUC, app.QueryUC, app.RouterUC, app.ChatUC).
		WithMetrics(app.Metrics).
		WithBreakerStates(app.BreakerStates).
		Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
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
