package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

const notFoundSentinel = "__NOT_FOUND__"

// maxNegativeTTL bounds how long a miss can shadow a link created after it.
const maxNegativeTTL = 5 * time.Second

// CachedLinkRepository decorates a LinkStore with a Redis cache-aside for
// short code lookups. Only GetByCode reads from the cache, so the clicks
// field of a cached link may lag behind the database.
type CachedLinkRepository struct {
	LinkStore
	cache       *redis.Client
	ttl         time.Duration
	negativeTTL time.Duration
	group       singleflight.Group
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger
}

// NewCachedLinkRepository wraps store. A nil cache disables caching.
func NewCachedLinkRepository(store LinkStore, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedLinkRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedLinkRepository{
		LinkStore:   store,
		cache:       cache,
		ttl:         ttl,
		negativeTTL: min(ttl, maxNegativeTTL),
		logger:      logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "redis-link-cache",
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("cache breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func cacheKey(code string) string {
	return "link:" + code
}

// GetByCode with cache-aside, negative caching and request coalescing
func (r *CachedLinkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	if r.cache == nil {
		return r.LinkStore.GetByCode(ctx, code)
	}

	if cached, ok := r.cacheGet(ctx, code); ok {
		if cached == notFoundSentinel {
			return nil, ErrNotFound
		}
		var link model.Link
		if err := json.Unmarshal([]byte(cached), &link); err == nil {
			return &link, nil
		}
	}

	v, err, _ := r.group.Do(code, func() (interface{}, error) {
		link, err := r.LinkStore.GetByCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			r.cacheMissing(ctx, code)
			return nil, err
		}
		if err != nil {
			return nil, err
		}
		_ = r.store(ctx, link)
		return link, nil
	})
	if err != nil {
		return nil, err
	}
	link := *v.(*model.Link)
	return &link, nil
}

// Create writes through to the cache, replacing any negative entry. When
// the write fails the key is dropped so a stale miss cannot outlive the row.
func (r *CachedLinkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.LinkStore.Create(ctx, link); err != nil {
		return err
	}
	if err := r.store(ctx, link); err != nil {
		// bypass the breaker: an open breaker is exactly when this matters
		if derr := r.cache.Del(ctx, cacheKey(link.ShortCode)).Err(); derr != nil {
			r.logger.Warn("cache entry left in place after failed write-through",
				"short_code", link.ShortCode, "error", derr)
		}
	}
	return nil
}

// DeleteForOwner removes the link and invalidates its cache entry
func (r *CachedLinkRepository) DeleteForOwner(ctx context.Context, id, ownerID uuid.UUID) (string, error) {
	code, err := r.LinkStore.DeleteForOwner(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	if r.cache != nil {
		_, cerr := r.breaker.Execute(func() (interface{}, error) {
			return nil, r.cache.Del(ctx, cacheKey(code)).Err()
		})
		if cerr != nil {
			r.logger.Warn("cache invalidation failed", "short_code", code, "error", cerr)
		}
	}
	return code, nil
}

func (r *CachedLinkRepository) store(ctx context.Context, link *model.Link) error {
	if r.cache == nil {
		return nil
	}
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return r.cacheSet(ctx, link.ShortCode, string(data))
}

// cacheMissing records a miss without clobbering an entry written by a
// concurrent Create.
func (r *CachedLinkRepository) cacheMissing(ctx context.Context, code string) {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.cache.SetNX(ctx, cacheKey(code), notFoundSentinel, r.negativeTTL).Err()
	})
	if err != nil {
		r.logger.Debug("cache write skipped", "short_code", code, "error", err)
	}
}

// cacheGet reports a hit only when Redis answered with a value. Redis
// errors and an open breaker count as a miss.
func (r *CachedLinkRepository) cacheGet(ctx context.Context, code string) (string, bool) {
	v, err := r.breaker.Execute(func() (interface{}, error) {
		val, err := r.cache.Get(ctx, cacheKey(code)).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return val, err
	})
	if err != nil {
		r.logger.Debug("cache read skipped", "short_code", code, "error", err)
		return "", false
	}
	val := v.(string)
	return val, val != ""
}

func (r *CachedLinkRepository) cacheSet(ctx context.Context, code, value string) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.cache.Set(ctx, cacheKey(code), value, r.ttl).Err()
	})
	if err != nil {
		r.logger.Debug("cache write skipped", "short_code", code, "error", err)
	}
	return err
}

var _ LinkStore = (*CachedLinkRepository)(nil)
