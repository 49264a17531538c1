package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fatura/internal/backend"
	"fatura/internal/cache"
	"fatura/internal/config"
	"fatura/internal/engine"
	"fatura/internal/services"
	"fatura/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting fatura-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).Create(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	// The worker recomputes from scratch on every refresh, so a small
	// cache is enough.
	statements := services.NewStatementService(result.Store, cache.New[engine.Result](16, cfg.CacheTTL))
	snapshotWorker := worker.NewSnapshotWorker(result.Store, statements, result.Events, cfg.AgendaDays)

	done := make(chan error, 1)
	go func() {
		done <- snapshotWorker.Run(ctx, cfg.SnapshotSchedule)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			logger.Warn("Shutdown timeout reached")
		}
	case err := <-done:
		if err != nil && err != context.Canceled {
			logger.Error("Worker stopped", "error", err)
		}
	}

	logger.Info("Worker shutdown complete")
}
