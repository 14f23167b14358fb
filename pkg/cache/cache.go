package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Store is a byte-level key/value store with per-entry expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Observer interface {
	CacheHit(bucket string)
	CacheMiss(bucket string)
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)  {}
func (nopObserver) CacheMiss(string) {}

// Cache pairs a Store with an Observer. A nil *Cache disables caching.
type Cache struct {
	store Store
	obs   Observer
}

func New(store Store, obs Observer) *Cache {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Cache{store: store, obs: obs}
}

func (c *Cache) Store() Store {
	if c == nil {
		return nil
	}
	return c.store
}

// Invalidate drops one entry.
func (c *Cache) Invalidate(ctx context.Context, bucket, key string) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Delete(ctx, bucket+":"+key)
}

// GetOrCompute returns the cached value for key, or runs compute and stores
// its JSON encoding for ttl. The returned value is always the decoded
// encoding so a miss and a later hit yield identical payloads.
//
// Cache failures are logged and never fail the call. Concurrent misses on
// the same key may both compute; the last write wins.
func GetOrCompute[T any](
	ctx context.Context,
	c *Cache,
	bucket, key string,
	ttl time.Duration,
	compute func(context.Context) (T, error),
) (T, error) {
	if c == nil || c.store == nil || ttl <= 0 {
		return compute(ctx)
	}

	logger := zerolog.Ctx(ctx).With().Str("cache_bucket", bucket).Str("cache_key", key).Logger()
	full := bucket + ":" + key

	raw, ok, err := c.store.Get(ctx, full)
	if err != nil {
		logger.Warn().Err(err).Msg("cache read failed")
	}
	if ok {
		var out T
		if err := json.Unmarshal(raw, &out); err == nil {
			c.obs.CacheHit(bucket)
			return out, nil
		}
		logger.Warn().Msg("discarding undecodable cache entry")
	}
	c.obs.CacheMiss(bucket)

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	raw, err = json.Marshal(value)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("encode cache value: %w", err)
	}
	if err := c.store.Set(ctx, full, raw, ttl); err != nil {
		logger.Warn().Err(err).Msg("cache write failed")
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("decode cache value: %w", err)
	}
	return out, nil
}
