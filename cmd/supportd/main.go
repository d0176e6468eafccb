package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/brunelhq/brunel-support/internal/api/chat"
	"github.com/brunelhq/brunel-support/internal/automation"
	"github.com/brunelhq/brunel-support/internal/config"
	"github.com/brunelhq/brunel-support/internal/exchange"
	"github.com/brunelhq/brunel-support/internal/server"
	"github.com/brunelhq/brunel-support/internal/storage"
	"github.com/brunelhq/brunel-support/internal/storage/memory"
	"github.com/brunelhq/brunel-support/internal/storage/sqlite"
	"github.com/brunelhq/brunel-support/internal/telemetry"
	"github.com/brunelhq/brunel-support/internal/tokens"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Automation.Endpoint == "" {
		log.Fatal("automation.endpoint is required (SUPPORT_AUTOMATION__ENDPOINT)")
	}

	shutdownTracer, err := telemetry.InitTracer("brunel-support", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	client := automation.NewClient(cfg.Automation.Endpoint,
		automation.WithAPIKey(cfg.Automation.APIKey),
		automation.WithTimeout(time.Duration(cfg.Automation.TimeoutMS)*time.Millisecond),
	)

	opts := []exchange.Option{}
	if estimator, err := tokens.NewEstimator(); err != nil {
		logger.Warn("token estimator unavailable, usage logging disabled", slog.String("error", err.Error()))
	} else {
		opts = append(opts, exchange.WithEstimator(estimator))
	}
	svc := exchange.NewService(store, client, logger, opts...)

	srv := server.New(cfg.Server.Port, time.Duration(cfg.Server.RequestTimeoutMS)*time.Millisecond, logger)
	chat.NewHandler(store, svc, logger).Register(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (storage.ConversationStore, error) {
	switch cfg.Storage.Type {
	case "memory":
		return memory.New(), nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLite.Path), 0o755); err != nil {
			return nil, err
		}
		return sqlite.New(cfg.Storage.SQLite.Path)
	}
}
