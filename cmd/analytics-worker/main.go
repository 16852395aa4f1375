package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BhargavRaval15/url-shortner/internal/analytics"
	"github.com/BhargavRaval15/url-shortner/internal/config"
	"github.com/BhargavRaval15/url-shortner/internal/infra"
	"github.com/BhargavRaval15/url-shortner/internal/messaging"
	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/BhargavRaval15/url-shortner/internal/observability"
	"github.com/BhargavRaval15/url-shortner/internal/repository"
)

// analytics-worker drains the click queue into the click table.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Broker.URL == "" {
		log.Fatal("AMQP_URL must be set for the analytics worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.NewLogger(cfg.App.Environment, cfg.App.ServiceName+"-analytics-worker", cfg.App.LogLevel)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("worker exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := infra.ConnectPostgres(ctx, logger, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	clicks := repository.NewClickRepository(db)

	var consumer *messaging.Consumer
	err = infra.ConnectWithRetry(ctx, logger, "rabbitmq", cfg.Database.ConnectAttempts, cfg.Database.ConnectDelay, func(context.Context) error {
		c, err := messaging.NewConsumer(cfg.Broker.URL, cfg.Broker.Queue, cfg.Analytics.Workers, logger)
		if err != nil {
			return err
		}
		consumer = c
		return nil
	})
	if err != nil {
		return err
	}
	defer consumer.Close()

	err = consumer.Run(ctx, func(ctx context.Context, event *model.ClickEvent) error {
		if event.Device == "" {
			analytics.Enrich(event)
		}
		writeCtx, cancel := context.WithTimeout(ctx, cfg.Analytics.WriteTimeout)
		defer cancel()
		return clicks.Create(writeCtx, event)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
