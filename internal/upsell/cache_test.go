package upsell

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upsell-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemoryCache() (*MemoryCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache()
	cache.now = clock.Now
	return cache, clock
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// ==========================
// Caching Builder Tests
// ==========================

func TestCachingBuilder_ReusesSnapshotWithinTTL(t *testing.T) {
	src := &staticSource{signals: scenarioSignals()}
	cache, clock := newTestMemoryCache()
	cb := NewCachingBuilder(NewBuilder(src, createTestLogger(t)), cache, CachePolicy{TTL: time.Minute}, createTestLogger(t))
	ctx := context.Background()

	first, err := cb.Build(ctx)
	require.NoError(t, err)
	second, err := cb.Build(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, src.Calls())

	clock.Advance(time.Minute)
	_, err = cb.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls())
}

func TestCachingBuilder_Invalidate(t *testing.T) {
	src := &staticSource{signals: scenarioSignals()}
	cache, _ := newTestMemoryCache()
	cb := NewCachingBuilder(NewBuilder(src, createTestLogger(t)), cache, CachePolicy{TTL: time.Hour}, createTestLogger(t))
	ctx := context.Background()

	_, err := cb.Build(ctx)
	require.NoError(t, err)
	require.NoError(t, cb.Invalidate(ctx))
	_, err = cb.Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, src.Calls())
}

func TestCachingBuilder_ErrorsAreNotCached(t *testing.T) {
	src := &staticSource{err: errStoreDown}
	cache, _ := newTestMemoryCache()
	cb := NewCachingBuilder(NewBuilder(src, createTestLogger(t)), cache, CachePolicy{TTL: time.Hour}, createTestLogger(t))
	ctx := context.Background()

	_, err := cb.Build(ctx)
	assert.True(t, errors.Is(err, ErrSignalSourceUnavailable))

	src.err = nil
	src.signals = scenarioSignals()
	meta, err := cb.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SH-1", meta.SiteTop)
}

func TestCachingBuilder_SingleFlight(t *testing.T) {
	src := &staticSource{signals: scenarioSignals(), delay: 100 * time.Millisecond}
	cache, _ := newTestMemoryCache()
	cb := NewCachingBuilder(NewBuilder(src, createTestLogger(t)), cache, CachePolicy{TTL: time.Minute}, createTestLogger(t))

	const callers = 25
	start := make(chan struct{})
	results := make([]*models.RankingMetadata, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = cb.Build(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, src.Calls())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestCachingBuilder_LeaderCancelDoesNotFailFollowers(t *testing.T) {
	src := &staticSource{signals: scenarioSignals(), delay: 200 * time.Millisecond}
	cache, _ := newTestMemoryCache()
	cb := NewCachingBuilder(NewBuilder(src, createTestLogger(t)), cache, CachePolicy{TTL: time.Minute}, createTestLogger(t))

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := cb.Build(leaderCtx)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return src.Calls() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		meta *models.RankingMetadata
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		meta, err := cb.Build(context.Background())
		follower <- result{meta, err}
	}()
	time.Sleep(20 * time.Millisecond)
	cancelLeader()

	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, "SH-1", got.meta.SiteTop)
	assert.Equal(t, 1, src.Calls())

	// the detached rebuild still filled the cache
	cached, ok, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, got.meta, cached)
}

func TestCachingBuilder_CallerDeadlineIsNotSourceFailure(t *testing.T) {
	src := &staticSource{signals: scenarioSignals(), delay: 200 * time.Millisecond}
	cache, _ := newTestMemoryCache()
	cb := NewCachingBuilder(NewBuilder(src, createTestLogger(t)), cache, CachePolicy{TTL: time.Minute}, createTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cb.Build(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, ErrSignalSourceUnavailable))
	assert.Equal(t, "TIMEOUT_ERROR", string(StandardError(err).Code))

	// the rebuild keeps going without the caller and lands in the cache
	require.Eventually(t, func() bool {
		_, ok, _ := cache.Get(context.Background())
		return ok
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, src.Calls())
}

func TestCachingBuilder_RebuildTimeoutIsSourceFailure(t *testing.T) {
	src := &staticSource{signals: scenarioSignals(), delay: time.Second}
	cache, _ := newTestMemoryCache()
	cb := NewCachingBuilder(NewBuilder(src, createTestLogger(t)), cache,
		CachePolicy{TTL: time.Minute, BuildTimeout: 20 * time.Millisecond}, createTestLogger(t))

	_, err := cb.Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignalSourceUnavailable)
	assert.Contains(t, err.Error(), "rebuild timed out")
}

func TestCachingBuilder_Defaults(t *testing.T) {
	cb := NewCachingBuilder(&staticBuilder{}, NewMemoryCache(), CachePolicy{}, createTestLogger(t))

	assert.Equal(t, DefaultMetadataCacheKey, cb.policy.Key)
	assert.Equal(t, DefaultMetadataBuildTimeout, cb.policy.BuildTimeout)
	assert.Equal(t, time.Minute, cb.policy.TTL)
}

// ==========================
// Memory Cache Tests
// ==========================

func TestMemoryCache(t *testing.T) {
	cache, clock := newTestMemoryCache()
	ctx := context.Background()
	meta := BuildMetadata(scenarioSignals())

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, meta, 10*time.Second))
	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, meta, got)

	clock.Advance(10 * time.Second)
	_, ok, _ = cache.Get(ctx)
	assert.False(t, ok, "expired at exactly TTL")

	require.NoError(t, cache.Set(ctx, meta, time.Minute))
	require.NoError(t, cache.Invalidate(ctx))
	_, ok, _ = cache.Get(ctx)
	assert.False(t, ok)
}

// ==========================
// Redis Cache Tests
// ==========================

func TestRedisCache_RoundTrip(t *testing.T) {
	mr, client := setupMiniredis(t)
	cache := NewRedisCache(client, "")
	ctx := context.Background()
	meta := BuildMetadata(scenarioSignals())

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, meta, 30*time.Second))
	assert.True(t, mr.Exists(DefaultMetadataCacheKey))
	assert.Equal(t, 30*time.Second, mr.TTL(DefaultMetadataCacheKey))

	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, meta, got)

	mr.FastForward(31 * time.Second)
	_, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, meta, time.Minute))
	require.NoError(t, cache.Invalidate(ctx))
	assert.False(t, mr.Exists(DefaultMetadataCacheKey))
}

func TestRedisCache_CorruptPayload(t *testing.T) {
	mr, client := setupMiniredis(t)
	require.NoError(t, mr.Set("custom:key", "{not json"))
	cache := NewRedisCache(client, "custom:key")

	_, ok, err := cache.Get(context.Background())

	assert.False(t, ok)
	assert.Error(t, err)
}

func TestCachingBuilder_RedisSharedAcrossReplicas(t *testing.T) {
	_, client := setupMiniredis(t)
	ctx := context.Background()

	srcA := &staticSource{signals: scenarioSignals()}
	srcB := &staticSource{signals: scenarioSignals()}
	replicaA := NewCachingBuilder(NewBuilder(srcA, createTestLogger(t)), NewRedisCache(client, ""), CachePolicy{TTL: time.Minute}, createTestLogger(t))
	replicaB := NewCachingBuilder(NewBuilder(srcB, createTestLogger(t)), NewRedisCache(client, ""), CachePolicy{TTL: time.Minute}, createTestLogger(t))

	metaA, err := replicaA.Build(ctx)
	require.NoError(t, err)
	metaB, err := replicaB.Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, metaA, metaB)
	assert.Equal(t, 1, srcA.Calls())
	assert.Equal(t, 0, srcB.Calls())
}

func TestCachingBuilder_RedisErrorsFallThrough(t *testing.T) {
	client, mock := redismock.NewClientMock()
	signals := scenarioSignals()
	payload, err := json.Marshal(BuildMetadata(signals))
	require.NoError(t, err)

	// lookup before and inside the flight both fail
	mock.ExpectGet(DefaultMetadataCacheKey).SetErr(errors.New("i/o timeout"))
	mock.ExpectGet(DefaultMetadataCacheKey).SetErr(errors.New("i/o timeout"))
	mock.ExpectSet(DefaultMetadataCacheKey, payload, time.Minute).SetErr(errors.New("READONLY"))

	src := &staticSource{signals: signals}
	cb := NewCachingBuilder(NewBuilder(src, createTestLogger(t)), NewRedisCache(client, ""), CachePolicy{TTL: time.Minute}, createTestLogger(t))

	meta, err := cb.Build(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "SH-1", meta.SiteTop)
	assert.Equal(t, 1, src.Calls())
	assert.NoError(t, mock.ExpectationsWereMet())
}
