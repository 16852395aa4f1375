package testutil

import (
	"context"
	"time"

	"github.com/BhargavRaval15/url-shortner/internal/infra"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	redisTC "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestCache holds a Redis container and a connected client
type TestCache struct {
	Client    *redis.Client
	URL       string
	container *redisTC.RedisContainer
}

// SetupTestCache starts a Redis container and connects to it
func SetupTestCache(ctx context.Context) (*TestCache, error) {
	container, err := redisTC.Run(ctx,
		"redis:8-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	url, err := container.ConnectionString(ctx)
	if err == nil {
		var client *redis.Client
		client, err = infra.NewCacheClient(ctx, url)
		if err == nil {
			return &TestCache{Client: client, URL: url, container: container}, nil
		}
	}

	if terr := container.Terminate(ctx); terr != nil {
		err = terr
	}
	return nil, err
}

// Cleanup flushes every key so tests start cold
func (t *TestCache) Cleanup(ctx context.Context) {
	if t == nil || t.Client == nil {
		return
	}
	t.Client.FlushDB(ctx)
}

// Teardown closes the client and terminates the container
func (t *TestCache) Teardown(ctx context.Context) {
	if t.Client != nil {
		t.Client.Close()
	}
	if t.container != nil {
		_ = t.container.Terminate(ctx)
	}
}
