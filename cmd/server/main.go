package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BhargavRaval15/url-shortner/internal/analytics"
	"github.com/BhargavRaval15/url-shortner/internal/config"
	"github.com/BhargavRaval15/url-shortner/internal/infra"
	"github.com/BhargavRaval15/url-shortner/internal/messaging"
	"github.com/BhargavRaval15/url-shortner/internal/observability"
	"github.com/BhargavRaval15/url-shortner/internal/repository"
	"github.com/BhargavRaval15/url-shortner/internal/server"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.Setup(ctx, observability.Config{
		ServiceName:      cfg.App.ServiceName,
		Environment:      cfg.App.Environment,
		LogLevel:         cfg.App.LogLevel,
		OTLPEndpoint:     cfg.App.OTLPEndpoint,
		TraceSampleRatio: cfg.App.TraceSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}
	logger := obs.Logger
	slog.SetDefault(logger)

	if err := run(ctx, cfg, obs); err != nil {
		logger.Error("server exited with error", slog.String("error", err.Error()))
		shutdownObservability(obs)
		os.Exit(1)
	}
	shutdownObservability(obs)
}

func run(ctx context.Context, cfg *config.Config, obs *observability.Observability) error {
	logger := obs.Logger

	db, err := infra.ConnectPostgres(ctx, logger, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connected")

	if cfg.Database.AutoMigrate {
		if err := infra.RunMigrations(cfg.Database.MigrationsPath, cfg.Database.ConnectionString()); err != nil {
			return err
		}
		logger.Info("migrations applied", slog.String("path", cfg.Database.MigrationsPath))
	}

	cache := infra.ConnectCache(ctx, logger, cfg.Cache)
	if cache != nil {
		defer cache.Close()
	}

	// Clicks go to the broker when one is configured and straight to
	// the click table otherwise.
	var sink analytics.Sink = analytics.SinkFunc(repository.NewClickRepository(db).Create)
	if cfg.Broker.URL != "" {
		publisher, err := messaging.NewPublisher(cfg.Broker.URL, cfg.Broker.Queue)
		if err != nil {
			return err
		}
		defer publisher.Close()
		sink = analytics.SinkFunc(publisher.Publish)
		logger.Info("click events published to broker", slog.String("queue", cfg.Broker.Queue))
	}

	recorder := analytics.NewRecorder(sink, analytics.Options{
		BufferSize:   cfg.Analytics.BufferSize,
		Workers:      cfg.Analytics.Workers,
		WriteTimeout: cfg.Analytics.WriteTimeout,
	}, logger, obs.Metrics)
	recorder.Start()
	defer func() {
		if err := recorder.Stop(); err != nil {
			logger.Error("click recorder stopped with error", slog.String("error", err.Error()))
		}
	}()

	app := server.NewApp(ctx, server.Deps{
		Config:   cfg,
		DB:       db,
		Cache:    cache,
		Recorder: recorder,
		Logger:   logger,
		Metrics:  obs.Metrics,
		Registry: obs.Registry,
	})

	if cfg.Auth.DefaultUserEmail != "" {
		if err := app.Auth.EnsureDefaultUser(ctx, cfg.Auth.DefaultUserEmail, cfg.Auth.DefaultUserPassword); err != nil {
			return err
		}
	}

	srv := server.NewServer(cfg, app.Router)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Server.Port),
			slog.String("base_url", cfg.App.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server exited gracefully")
	return nil
}

func shutdownObservability(obs *observability.Observability) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	obs.Shutdown(ctx)
}
