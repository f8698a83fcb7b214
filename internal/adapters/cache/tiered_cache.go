package cache

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/zatekoja/medcoding/backend/internal/domain/providers"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
)

// Cache tiers, used as metric attributes
const (
	TierLocal  = "local"
	TierRemote = "redis"
)

// TieredCache is a read-through cache: the in-process tier is checked first,
// then the optional remote tier, whose hits are copied back into the local
// tier. Remote failures never surface; they degrade to a miss or a skipped write.
type TieredCache struct {
	local   *MemoryCache
	remote  providers.CacheProvider
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewTieredCache creates a tiered cache. remote may be nil when no
// distributed cache is configured.
func NewTieredCache(local *MemoryCache, remote providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) *TieredCache {
	if local == nil {
		local = NewMemoryCache()
	}
	return &TieredCache{
		local:   local,
		remote:  remote,
		ttl:     ttl,
		metrics: metrics,
	}
}

// Get returns the cached value for key and whether it was found
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := c.local.Get(key); ok {
		observability.RecordCacheHit(ctx, c.metrics, TierLocal)
		return value, true
	}

	value, err := c.remoteGet(ctx, key)
	switch {
	case err == nil:
		c.local.Set(key, value, c.ttl)
		observability.RecordCacheHit(ctx, c.metrics, TierRemote)
		return value, true
	case apperrors.IsType(err, apperrors.ErrorTypeDegraded):
		observability.LogDegraded(ctx, c.metrics, "cache.redis.get", err)
	}

	observability.RecordCacheMiss(ctx, c.metrics)
	return nil, false
}

// Set writes value to both tiers
func (c *TieredCache) Set(ctx context.Context, key string, value []byte) {
	c.local.Set(key, value, c.ttl)
	if err := c.remoteSet(ctx, key, value); err != nil {
		observability.LogDegraded(ctx, c.metrics, "cache.redis.set", err)
	}
}

// InvalidateLocal drops the whole in-process tier
func (c *TieredCache) InvalidateLocal() {
	c.local.Clear()
}

// Invalidate drops the in-process tier unconditionally and, best-effort,
// every remote key matching pattern
func (c *TieredCache) Invalidate(ctx context.Context, pattern string) {
	c.local.Clear()
	if c.remote == nil {
		return
	}
	if err := c.remote.DeletePattern(ctx, pattern); err != nil {
		observability.LogDegraded(ctx, c.metrics, "cache.redis.invalidate",
			apperrors.NewDegradedError("cache unavailable", err))
	}
}

// remoteGet returns providers.ErrCacheMiss on a plain miss and a DEGRADED
// error when the remote tier is unreachable
func (c *TieredCache) remoteGet(ctx context.Context, key string) ([]byte, error) {
	if c.remote == nil {
		return nil, providers.ErrCacheMiss
	}
	value, err := c.remote.Get(ctx, key)
	if errors.Is(err, providers.ErrCacheMiss) {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewDegradedError("cache unavailable", err)
	}
	return value, nil
}

func (c *TieredCache) remoteSet(ctx context.Context, key string, value []byte) error {
	if c.remote == nil {
		return nil
	}
	seconds := int(math.Ceil(c.ttl.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	if err := c.remote.Set(ctx, key, value, seconds); err != nil {
		return apperrors.NewDegradedError("cache unavailable", err)
	}
	return nil
}
