package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/krisalay/ops-engine/api"
	"github.com/krisalay/ops-engine/cache"
	"github.com/krisalay/ops-engine/engine"
	"github.com/krisalay/ops-engine/eviction"
	"github.com/krisalay/ops-engine/expiration"
	"github.com/krisalay/ops-engine/types"
	"github.com/krisalay/ops-engine/writepolicy"
)

var _ api.Cache = (*cache.Store)(nil)

//
// ================= HELPERS =================
//

// fakeClock is a settable time source for stepping over TTL boundaries.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// countingMetrics records the events the store reports.
type countingMetrics struct {
	hits, misses, evictions, expired atomic.Int64
	size                             atomic.Int64
}

func (m *countingMetrics) Hit()       { m.hits.Add(1) }
func (m *countingMetrics) Miss()      { m.misses.Add(1) }
func (m *countingMetrics) Eviction()  { m.evictions.Add(1) }
func (m *countingMetrics) Expire()    { m.expired.Add(1) }
func (m *countingMetrics) Size(n int) { m.size.Store(int64(n)) }

func quietLogger() log.Interface {
	return &log.Logger{Handler: discard.Default, Level: log.ErrorLevel}
}

func newTestStore(t *testing.T, cfg cache.Config) (*cache.Store, *fakeClock, *countingMetrics) {
	t.Helper()

	clock := newFakeClock()
	metrics := &countingMetrics{}
	eng := engine.NewCacheEngine(expiration.ExpireAfterWrite{}, nil, metrics, quietLogger())
	eng.Now = clock.Now

	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = -1
	}
	s := cache.New(context.Background(), cfg, eng)
	t.Cleanup(s.Close)
	return s, clock, metrics
}

//
// ================= BASIC OPERATIONS =================
//

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, cache.Config{})

	s.Put(ctx, "key1", "value1")

	ent, ok := s.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "value1", ent.Value)
	assert.Equal(t, uint64(1), ent.HitCount)
	assert.Equal(t, cache.DefaultTTL, ent.TTL)
}

func TestGetMissing(t *testing.T) {
	s, _, metrics := newTestStore(t, cache.Config{})

	ent, ok := s.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, ent)
	assert.Equal(t, uint64(1), s.Stats().MissCount)
	assert.Equal(t, int64(1), metrics.misses.Load())
}

func TestHitCountOnlyGrowsOnLiveReads(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, cache.Config{})

	s.Put(ctx, "k", 1)
	for i := 1; i <= 3; i++ {
		ent, ok := s.Get("k")
		require.True(t, ok)
		assert.Equal(t, uint64(i), ent.HitCount)
	}

	peeked, ok := s.Peek("k")
	require.True(t, ok)
	assert.Equal(t, uint64(3), peeked.HitCount, "peek must not count")
}

func TestOverwriteResetsEntry(t *testing.T) {
	ctx := context.Background()
	s, _, metrics := newTestStore(t, cache.Config{MaxSize: 2})

	s.Put(ctx, "a", 1)
	s.Put(ctx, "b", 2)
	_, _ = s.Get("a")
	s.Put(ctx, "a", 3)

	assert.Equal(t, 2, s.Len())
	assert.Zero(t, metrics.evictions.Load(), "overwrite must not evict")

	ent, ok := s.Peek("a")
	require.True(t, ok)
	assert.Equal(t, 3, ent.Value)
	assert.Zero(t, ent.HitCount)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, cache.Config{})

	s.Put(ctx, "k", 1)
	s.Remove("k")
	s.Remove("k")

	_, ok := s.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

//
// ================= TTL =================
//

func TestExpiredEntryIsRemovedOnGet(t *testing.T) {
	ctx := context.Background()
	s, clock, metrics := newTestStore(t, cache.Config{})

	s.PutWithTTL(ctx, "ttl", "temp", time.Minute)

	clock.Advance(time.Minute)
	_, ok := s.Get("ttl")
	assert.True(t, ok, "live at exactly createdAt+ttl")

	clock.Advance(time.Second)
	_, ok = s.Get("ttl")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(1), metrics.expired.Load())

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.HitCount)
	assert.Equal(t, uint64(1), stats.MissCount)
	assert.Equal(t, uint64(1), stats.Expirations)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	s, clock, _ := newTestStore(t, cache.Config{})

	s.PutWithTTL(ctx, "short-1", 1, time.Second)
	s.PutWithTTL(ctx, "short-2", 2, time.Second)
	s.PutWithTTL(ctx, "long", 3, time.Hour)

	assert.Zero(t, s.Sweep())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 2, s.Sweep())
	assert.Zero(t, s.Sweep(), "second sweep finds nothing")

	assert.Equal(t, 1, s.Len())
	_, ok := s.Peek("long")
	assert.True(t, ok)
}

func TestSweepAndGetRaceOnSameKey(t *testing.T) {
	ctx := context.Background()
	s, clock, _ := newTestStore(t, cache.Config{Shards: 4})

	for i := 0; i < 200; i++ {
		s.PutWithTTL(ctx, fmt.Sprintf("k-%d", i), i, time.Second)
	}
	clock.Advance(time.Minute)

	var swept atomic.Int64
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		swept.Add(int64(s.Sweep()))
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = s.Get(fmt.Sprintf("k-%d", i))
		}
	}()
	wg.Wait()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, uint64(200), s.Stats().Expirations, "each entry expires exactly once")
	assert.LessOrEqual(t, swept.Load(), int64(200))
}

func TestBackgroundSweep(t *testing.T) {
	eng := engine.NewCacheEngine(nil, nil, nil, quietLogger())
	s := cache.New(context.Background(), cache.Config{SweepInterval: 5 * time.Millisecond}, eng)
	defer s.Close()

	s.PutWithTTL(context.Background(), "k", 1, time.Millisecond)

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCloseStopsSweeper(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := cache.New(context.Background(), cache.Config{SweepInterval: time.Millisecond}, nil)
	s.Close()
	s.Close()
}

func TestContextStopsSweeper(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	s := cache.New(ctx, cache.Config{SweepInterval: time.Millisecond}, nil)
	cancel()
	s.Close()
}

//
// ================= CAPACITY & EVICTION =================
//

func TestEvictionAtDefaultCapacity(t *testing.T) {
	ctx := context.Background()
	s, _, metrics := newTestStore(t, cache.Config{})

	for i := 0; i < cache.DefaultMaxSize; i++ {
		s.Put(ctx, fmt.Sprintf("k-%d", i), i)
	}
	// every key but k-42 gets read once
	for i := 0; i < cache.DefaultMaxSize; i++ {
		if i != 42 {
			_, ok := s.Get(fmt.Sprintf("k-%d", i))
			require.True(t, ok)
		}
	}

	s.Put(ctx, "overflow", -1)

	assert.Equal(t, cache.DefaultMaxSize, s.Len())
	_, ok := s.Peek("k-42")
	assert.False(t, ok, "lowest hit count must be evicted")
	_, ok = s.Peek("overflow")
	assert.True(t, ok)
	assert.Equal(t, int64(1), metrics.evictions.Load())
	assert.Equal(t, uint64(1), s.Stats().Evictions)
}

func TestEvictionTieBreaksOnOldestInsert(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, cache.Config{MaxSize: 3})

	s.Put(ctx, "first", 1)
	s.Put(ctx, "second", 2)
	s.Put(ctx, "third", 3)
	s.Put(ctx, "fourth", 4)

	_, ok := s.Peek("first")
	assert.False(t, ok)
	assert.Equal(t, 3, s.Len())
}

func TestEvictionPolicyIsConfigurable(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, cache.Config{MaxSize: 2, Eviction: eviction.LRU})

	s.Put(ctx, "a", 1)
	s.Put(ctx, "b", 2)
	_, _ = s.Get("b")
	_, _ = s.Get("b")
	_, _ = s.Get("a")
	s.Put(ctx, "c", 3)

	// b has more hits but a was read last
	_, ok := s.Peek("b")
	assert.False(t, ok)
	_, ok = s.Peek("a")
	assert.True(t, ok)
}

func TestShardedCapacityRoundsUp(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, cache.Config{Shards: 4, MaxSize: 10})

	for i := 0; i < 100; i++ {
		s.Put(ctx, fmt.Sprintf("k-%d", i), i)
	}
	// 4 shards of 3 entries each
	assert.LessOrEqual(t, s.Len(), 12)
	assert.GreaterOrEqual(t, s.Len(), 10)
}

//
// ================= MEMOIZE & STATS =================
//

func TestMemoizeHitRateScenario(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, cache.Config{})

	var computed int
	for i := 0; i < 10; i++ {
		v, hit, err := s.Memoize(ctx, "pricing:abc", 0, func(context.Context) (any, error) {
			computed++
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, i > 0, hit)
	}

	stats := s.Stats()
	assert.Equal(t, 1, computed)
	assert.Equal(t, uint64(9), stats.HitCount)
	assert.Equal(t, uint64(1), stats.MissCount)
	assert.InDelta(t, 90.0, stats.HitRate, 1e-9)
	assert.InDelta(t, 10.0, stats.MissRate, 1e-9)
	assert.Equal(t, 1, stats.Size)
}

func TestMemoizeDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, cache.Config{})
	boom := errors.New("boom")

	_, _, err := s.Memoize(ctx, "k", 0, func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())

	v, hit, err := s.Memoize(ctx, "k", 0, func(context.Context) (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", v)
}

func TestMemoizeCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, cache.Config{})

	var calls atomic.Int64
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := s.Memoize(ctx, "slow", 0, func(context.Context) (any, error) {
				calls.Add(1)
				<-release
				return "done", nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "done", v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
}

func TestClearResetsEverything(t *testing.T) {
	ctx := context.Background()
	s, _, metrics := newTestStore(t, cache.Config{MaxSize: 2})

	s.Put(ctx, "a", 1)
	s.Put(ctx, "b", 2)
	_, _ = s.Get("a")
	_, _ = s.Get("zzz")

	s.Clear()

	assert.Equal(t, types.Stats{}, s.Stats())
	assert.Zero(t, metrics.size.Load())

	// eviction bookkeeping was reset too
	s.Put(ctx, "c", 3)
	s.Put(ctx, "d", 4)
	s.Put(ctx, "e", 5)
	assert.Equal(t, 2, s.Len())
}

//
// ================= WRITE POLICY =================
//

func TestPutForwardsToSink(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var got []string
	sink := types.SinkFunc(func(_ context.Context, key string, _ any) error {
		mu.Lock()
		got = append(got, key)
		mu.Unlock()
		return nil
	})

	eng := engine.NewCacheEngine(nil, writepolicy.NewWriteThroughPolicy(sink, quietLogger()), nil, quietLogger())
	s := cache.New(ctx, cache.Config{SweepInterval: -1}, eng)
	defer s.Close()

	_, _, err := s.Memoize(ctx, "k", 0, func(context.Context) (any, error) { return 1, nil })
	require.NoError(t, err)
	_, _, err = s.Memoize(ctx, "k", 0, func(context.Context) (any, error) { return 1, nil })
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"k"}, got, "only fresh results are forwarded")
}

//
// ================= CONCURRENCY =================
//

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, cache.Config{Shards: 4, MaxSize: 64})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k-%d", (g*31+i)%128)
				if _, ok := s.Get(key); !ok {
					s.Put(ctx, key, i)
				}
			}
		}(g)
	}
	wg.Wait()

	stats := s.Stats()
	assert.Equal(t, uint64(8*500), stats.HitCount+stats.MissCount)
	assert.LessOrEqual(t, stats.Size, 64)
}
