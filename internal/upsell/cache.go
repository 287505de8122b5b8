package upsell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/common/metrics"
	"upsell-workers/internal/models"
)

const DefaultMetadataCacheKey = "upsell:ranking-metadata"

// MetadataCache stores one ranking metadata snapshot.
type MetadataCache interface {
	Get(ctx context.Context) (*models.RankingMetadata, bool, error)
	Set(ctx context.Context, meta *models.RankingMetadata, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// CachePolicy bounds staleness: a snapshot is served for at most TTL.
// BuildTimeout bounds a shared rebuild, which no single caller can cancel.
type CachePolicy struct {
	TTL          time.Duration
	Key          string
	BuildTimeout time.Duration
}

const DefaultMetadataBuildTimeout = 30 * time.Second

var errMetadataBuildTimeout = fmt.Errorf("%w: ranking metadata rebuild timed out", ErrSignalSourceUnavailable)

// CachingBuilder serves snapshots from a MetadataCache and rebuilds at most once
// per key at a time when the snapshot is missing or expired. Cache errors fall
// through to a direct build.
type CachingBuilder struct {
	builder MetadataBuilder
	cache   MetadataCache
	policy  CachePolicy
	group   singleflight.Group
	logger  logger.Logger
}

func NewCachingBuilder(builder MetadataBuilder, cache MetadataCache, policy CachePolicy, log logger.Logger) *CachingBuilder {
	if policy.Key == "" {
		policy.Key = DefaultMetadataCacheKey
	}
	if policy.TTL <= 0 {
		policy.TTL = time.Minute
	}
	if policy.BuildTimeout <= 0 {
		policy.BuildTimeout = DefaultMetadataBuildTimeout
	}
	return &CachingBuilder{
		builder: builder,
		cache:   cache,
		policy:  policy,
		logger:  log.WithFields(map[string]interface{}{"component": "metadata-cache"}),
	}
}

// Build returns the cached snapshot or joins the rebuild flight. The flight runs
// detached from any caller's cancellation; each caller only stops waiting when
// its own ctx is done.
func (c *CachingBuilder) Build(ctx context.Context) (*models.RankingMetadata, error) {
	if meta, ok := c.lookup(ctx); ok {
		metrics.UpsellMetadataCache.WithLabelValues("hit").Inc()
		return meta, nil
	}
	metrics.UpsellMetadataCache.WithLabelValues("miss").Inc()

	flight := c.group.DoChan(c.policy.Key, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeoutCause(context.WithoutCancel(ctx), c.policy.BuildTimeout, errMetadataBuildTimeout)
		defer cancel()
		return c.rebuild(flightCtx)
	})

	select {
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("ranking metadata rebuild shared", map[string]interface{}{"key": c.policy.Key})
		}
		return res.Val.(*models.RankingMetadata), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for ranking metadata: %w", context.Cause(ctx))
	}
}

func (c *CachingBuilder) rebuild(ctx context.Context) (*models.RankingMetadata, error) {
	// another flight may have filled the cache since our lookup
	if meta, ok := c.lookup(ctx); ok {
		return meta, nil
	}

	meta, err := c.builder.Build(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, meta, c.policy.TTL); err != nil {
		metrics.UpsellMetadataCache.WithLabelValues("error").Inc()
		c.logger.Warn("failed to store ranking metadata", map[string]interface{}{
			"key":   c.policy.Key,
			"error": err.Error(),
		})
	}
	return meta, nil
}

// Invalidate drops the cached snapshot so the next Build reads the signal source.
func (c *CachingBuilder) Invalidate(ctx context.Context) error {
	c.group.Forget(c.policy.Key)
	if err := c.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate ranking metadata: %w", err)
	}
	c.logger.Info("ranking metadata invalidated", map[string]interface{}{"key": c.policy.Key})
	return nil
}

func (c *CachingBuilder) lookup(ctx context.Context) (*models.RankingMetadata, bool) {
	meta, ok, err := c.cache.Get(ctx)
	if err != nil {
		metrics.UpsellMetadataCache.WithLabelValues("error").Inc()
		c.logger.Warn("failed to read ranking metadata cache", map[string]interface{}{
			"key":   c.policy.Key,
			"error": err.Error(),
		})
		return nil, false
	}
	return meta, ok
}

// ==========================
// In-memory cache
// ==========================

// MemoryCache keeps the snapshot in process. Readers share the same pointer and
// must treat it as read-only.
type MemoryCache struct {
	mu        sync.RWMutex
	meta      *models.RankingMetadata
	expiresAt time.Time
	now       func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context) (*models.RankingMetadata, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meta == nil || !m.now().Before(m.expiresAt) {
		return nil, false, nil
	}
	return m.meta, true, nil
}

func (m *MemoryCache) Set(_ context.Context, meta *models.RankingMetadata, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = meta
	m.expiresAt = m.now().Add(ttl)
	return nil
}

func (m *MemoryCache) Invalidate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = nil
	return nil
}

// ==========================
// Redis cache
// ==========================

// RedisCache shares the snapshot between worker replicas. Expiry is left to
// Redis via the key TTL.
type RedisCache struct {
	client *redis.Client
	key    string
}

func NewRedisCache(client *redis.Client, key string) *RedisCache {
	if key == "" {
		key = DefaultMetadataCacheKey
	}
	return &RedisCache{client: client, key: key}
}

func (r *RedisCache) Get(ctx context.Context) (*models.RankingMetadata, bool, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var meta models.RankingMetadata
	if err := json.Unmarshal([]byte(val), &meta); err != nil {
		return nil, false, fmt.Errorf("decode cached metadata: %w", err)
	}
	return &meta, true, nil
}

func (r *RedisCache) Set(ctx context.Context, meta *models.RankingMetadata, ttl time.Duration) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return r.client.Set(ctx, r.key, data, ttl).Err()
}

func (r *RedisCache) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
