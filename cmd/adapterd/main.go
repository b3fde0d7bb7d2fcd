package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/connorbell133/agentflow/internal/adapter"
	"github.com/connorbell133/agentflow/internal/config"
	"github.com/connorbell133/agentflow/internal/safehttp"
	"github.com/connorbell133/agentflow/internal/server"
	"github.com/connorbell133/agentflow/internal/storage"
	"github.com/connorbell133/agentflow/internal/storage/sqlite"
	"github.com/connorbell133/agentflow/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdown, err := telemetry.Init("agentflow-adapter", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open adapter store: %v", err)
	}
	defer store.Close()

	var invokerOpts []adapter.InvokerOption
	if cfg.Chat.RestrictPrivateEndpoints {
		invokerOpts = append(invokerOpts, adapter.WithHTTPClient(&http.Client{
			Transport: otelhttp.NewTransport(safehttp.NewTransport()),
		}))
	}

	srv := server.New(cfg.Server.Port, logger)
	handler := server.NewHandler(store, logger, cfg.Chat.DefaultHeaders, invokerOpts...)
	handler.Register(srv.Router)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting adapter service",
		slog.Int("port", cfg.Server.Port),
		slog.String("storage", cfg.Storage.Type),
	)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	logger.Info("shutdown complete")
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "sqlite":
		return sqlite.New(cfg.Storage.SQLite.Path)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}
