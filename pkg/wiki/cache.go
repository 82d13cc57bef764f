package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ridgeline/intranet/pkg/observability"
)

// VersionCache caches page version snapshots. Versions are immutable, so a
// cache hit never serves stale content; Invalidate is only needed when a
// page is hard-deleted and its version rows go away.
type VersionCache interface {
	Get(ctx context.Context, versionID int64) (*PageVersion, bool)
	Set(ctx context.Context, version *PageVersion)
	Invalidate(ctx context.Context, versionIDs []int64)
}

// LRUVersionCache keeps version snapshots in process memory.
type LRUVersionCache struct {
	entries *lru.Cache[int64, *PageVersion]
	metrics *observability.Metrics
}

// NewLRUVersionCache creates an in-process cache holding up to size
// versions.
func NewLRUVersionCache(size int) (*LRUVersionCache, error) {
	entries, err := lru.New[int64, *PageVersion](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create version cache: %w", err)
	}
	return &LRUVersionCache{entries: entries}, nil
}

// SetMetrics attaches hit/miss counters. Optional.
func (c *LRUVersionCache) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

func (c *LRUVersionCache) Get(ctx context.Context, versionID int64) (*PageVersion, bool) {
	v, ok := c.entries.Get(versionID)
	if c.metrics != nil {
		c.metrics.RecordCacheAccess("lru", ok)
	}
	return v, ok
}

func (c *LRUVersionCache) Set(ctx context.Context, version *PageVersion) {
	c.entries.Add(version.ID, version)
}

func (c *LRUVersionCache) Invalidate(ctx context.Context, versionIDs []int64) {
	for _, id := range versionIDs {
		c.entries.Remove(id)
	}
}

// RedisVersionCache keeps version snapshots in Redis so multiple instances
// share one cache. Errors are treated as misses; the database remains the
// source of truth.
type RedisVersionCache struct {
	redis   *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRedisVersionCache connects to Redis and verifies the connection.
func NewRedisVersionCache(addr, password string, ttl time.Duration, logger *observability.Logger) (*RedisVersionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisVersionCache{
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// SetMetrics attaches hit/miss counters. Optional.
func (c *RedisVersionCache) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// Close closes the Redis connection.
func (c *RedisVersionCache) Close() error {
	return c.redis.Close()
}

// Client exposes the underlying Redis client for health checks.
func (c *RedisVersionCache) Client() *redis.Client {
	return c.redis
}

func versionCacheKey(versionID int64) string {
	return fmt.Sprintf("version:%d", versionID)
}

func (c *RedisVersionCache) Get(ctx context.Context, versionID int64) (*PageVersion, bool) {
	cached, err := c.redis.Get(ctx, versionCacheKey(versionID)).Result()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.WithError(err).Warn("version cache read failed")
		}
		c.recordAccess(false)
		return nil, false
	}

	var version PageVersion
	if err := json.Unmarshal([]byte(cached), &version); err != nil {
		c.recordAccess(false)
		return nil, false
	}
	c.recordAccess(true)
	return &version, true
}

func (c *RedisVersionCache) recordAccess(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheAccess("redis", hit)
	}
}

func (c *RedisVersionCache) Set(ctx context.Context, version *PageVersion) {
	data, err := json.Marshal(version)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, versionCacheKey(version.ID), data, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.WithError(err).Warn("version cache write failed")
	}
}

func (c *RedisVersionCache) Invalidate(ctx context.Context, versionIDs []int64) {
	keys := make([]string, 0, len(versionIDs))
	for _, id := range versionIDs {
		keys = append(keys, versionCacheKey(id))
	}
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil && c.logger != nil {
		c.logger.WithError(err).Warn("version cache invalidation failed")
	}
}

// TieredVersionCache checks an in-process LRU before Redis, writing both on
// fill.
type TieredVersionCache struct {
	local  *LRUVersionCache
	shared VersionCache
}

// NewTieredVersionCache layers local over shared.
func NewTieredVersionCache(local *LRUVersionCache, shared VersionCache) *TieredVersionCache {
	return &TieredVersionCache{local: local, shared: shared}
}

// SetMetrics attaches hit/miss counters to both tiers. Optional.
func (c *TieredVersionCache) SetMetrics(m *observability.Metrics) {
	c.local.SetMetrics(m)
	if shared, ok := c.shared.(interface{ SetMetrics(*observability.Metrics) }); ok {
		shared.SetMetrics(m)
	}
}

func (c *TieredVersionCache) Get(ctx context.Context, versionID int64) (*PageVersion, bool) {
	if v, ok := c.local.Get(ctx, versionID); ok {
		return v, true
	}
	if v, ok := c.shared.Get(ctx, versionID); ok {
		c.local.Set(ctx, v)
		return v, true
	}
	return nil, false
}

func (c *TieredVersionCache) Set(ctx context.Context, version *PageVersion) {
	c.local.Set(ctx, version)
	c.shared.Set(ctx, version)
}

func (c *TieredVersionCache) Invalidate(ctx context.Context, versionIDs []int64) {
	c.local.Invalidate(ctx, versionIDs)
	c.shared.Invalidate(ctx, versionIDs)
}
