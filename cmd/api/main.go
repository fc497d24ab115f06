package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IlyasAtabaev731/market/internal/api"
	"github.com/IlyasAtabaev731/market/internal/config"
	"github.com/IlyasAtabaev731/market/internal/events"
	"github.com/IlyasAtabaev731/market/internal/service/auth"
	"github.com/IlyasAtabaev731/market/internal/service/exchange"
	"github.com/IlyasAtabaev731/market/internal/storage"
	"github.com/IlyasAtabaev731/market/internal/storage/postgres"
	"github.com/IlyasAtabaev731/market/internal/storage/sqlite"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting application",
		slog.String("env", cfg.Env),
		slog.String("host", cfg.ApiHost),
		slog.Int("port", cfg.ApiPort),
		slog.String("storage", cfg.Storage.Driver),
	)

	store, err := openStorage(cfg.Storage)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Info("Publishing trade events", slog.Any("brokers", cfg.Kafka.Brokers), slog.String("topic", cfg.Kafka.Topic))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	authService := auth.New(log, store, cfg.Session.Secret, cfg.Session.TTL)
	authService.StartCron(ctx, cfg.Session.PruneEvery)

	exchangeService := exchange.New(log, store, publisher)

	apiServer := api.New(cfg, log, authService, exchangeService)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		apiServer.MustStart()
	}()

	<-sigChan
	log.Info("Got signal to shutdown server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Stopping server error", "error", err)
	}
	if err := publisher.Close(); err != nil {
		log.Error("Closing event publisher error", "error", err)
	}
	if err := store.Stop(); err != nil {
		log.Error("Closing database error", "error", err)
	}
}

func openStorage(cfg config.Storage) (*storage.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.New(cfg.Postgres.PostgresURL())
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
