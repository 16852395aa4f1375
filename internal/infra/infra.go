package infra

import (
	"context"
	"log/slog"
	"time"

	"github.com/BhargavRaval15/url-shortner/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// NewPostgresPool creates a configured connection pool for PostgreSQL
// and verifies it with a ping.
func NewPostgresPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// ConnectPostgres opens the link store, retrying with the configured
// fixed attempts and delay.
func ConnectPostgres(ctx context.Context, logger *slog.Logger, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := ConnectWithRetry(ctx, logger, "postgres", cfg.ConnectAttempts, cfg.ConnectDelay, func(ctx context.Context) error {
		p, err := NewPostgresPool(ctx, cfg.ConnectionString())
		if err != nil {
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// NewCacheClient creates a Redis client from a connection string.
func NewCacheClient(ctx context.Context, connString string) (*redis.Client, error) {
	opt, err := redis.ParseURL(connString)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

// ConnectCache returns nil when caching is disabled or Redis is
// unreachable; the link store works without it.
func ConnectCache(ctx context.Context, logger *slog.Logger, cfg config.CacheConfig) *redis.Client {
	if !cfg.Enabled {
		logger.InfoContext(ctx, "cache disabled")
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := NewCacheClient(pingCtx, cfg.ConnectionString())
	if err != nil {
		logger.WarnContext(ctx, "cache unavailable, continuing without it", slog.String("error", err.Error()))
		return nil
	}
	return client
}
