package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/singleflight"

	"github.com/krisalay/ops-engine/engine"
	evict "github.com/krisalay/ops-engine/eviction"
	"github.com/krisalay/ops-engine/shard"
	"github.com/krisalay/ops-engine/types"
)

const (
	// DefaultMaxSize is the entry limit when Config.MaxSize is not set.
	DefaultMaxSize = 10000

	// DefaultTTL applies to writes that do not carry their own TTL.
	DefaultTTL = time.Hour

	// DefaultSweepInterval is how often expired entries are purged in the background.
	DefaultSweepInterval = 5 * time.Minute
)

// Config sizes a Store. Zero fields take the package defaults; a negative
// SweepInterval disables the background sweep.
type Config struct {
	Shards        int
	MaxSize       int
	DefaultTTL    time.Duration
	SweepInterval time.Duration
	Eviction      evict.PolicyType
}

/*
Store is the result cache.
This struct is the orchestrator that connects:
- shards (storage + eviction bookkeeping)
- the policy engine (expiry, write policy, metrics, logging)
- the background sweeper
- hit/miss accounting
*/
type Store struct {
	shards   []*shard.Shard
	engine   *engine.CacheEngine
	selector shard.Selector
	policy   evict.PolicyType

	defaultTTL time.Duration

	// seq numbers insertions store-wide.
	seq atomic.Uint64

	size        atomic.Int64
	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64

	// sf collapses concurrent misses on the same key into one computation.
	sf singleflight.Group

	shutdown  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

/*
New creates a Store and starts its sweeper. The sweeper stops when ctx is done or
Close is called, whichever comes first.
*/
func New(ctx context.Context, cfg Config, eng *engine.CacheEngine) *Store {
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Shards > cfg.MaxSize {
		cfg.Shards = cfg.MaxSize
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Eviction == "" {
		cfg.Eviction = evict.LowestHits
	}
	if eng == nil {
		eng = engine.NewCacheEngine(nil, nil, nil, nil)
	}

	// Capacity is divided across shards, rounding up so the total is never below MaxSize.
	perShard := (cfg.MaxSize + cfg.Shards - 1) / cfg.Shards

	s := make([]*shard.Shard, cfg.Shards)
	for i := range s {
		// Each shard gets its own eviction policy instance
		s[i] = shard.NewShard(evict.NewEvictionPolicy(cfg.Eviction), perShard)
	}

	c := &Store{
		shards:     s,
		engine:     eng,
		selector:   shard.HashSelector{},
		policy:     cfg.Eviction,
		defaultTTL: cfg.DefaultTTL,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go c.sweepLoop(ctx, cfg.SweepInterval)
	} else {
		close(c.done)
	}

	return c
}

/*
Get returns a copy of the live entry for key.

An expired entry is removed on the way and reported as not found. Every call counts
as exactly one hit or one miss.
*/
func (c *Store) Get(key string) (*types.CacheEntry, bool) {
	sh := c.selector.Select(key, c.shards)
	now := c.engine.Now()

	sh.Mu.Lock()
	ent, ok := sh.Store.Get(key)
	expired := false
	if ok && c.engine.IsExpired(ent, now) {
		sh.Store.Delete(key)
		sh.Eviction.Remove(key)
		expired, ok = true, false
	}
	var snapshot types.CacheEntry
	if ok {
		c.engine.OnRead(ent, now)
		sh.Eviction.OnGet(key)
		snapshot = *ent
	}
	sh.Mu.Unlock()

	if expired {
		c.expirations.Add(1)
		c.engine.Metrics.Expire()
		c.engine.Metrics.Size(int(c.size.Add(-1)))
	}
	if !ok {
		c.misses.Add(1)
		c.engine.Metrics.Miss()
		return nil, false
	}

	c.hits.Add(1)
	c.engine.Metrics.Hit()
	return &snapshot, true
}

// Peek returns a copy of the entry for key without counting a hit or miss and
// without applying expiry.
func (c *Store) Peek(key string) (*types.CacheEntry, bool) {
	sh := c.selector.Select(key, c.shards)

	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	ent, ok := sh.Store.Get(key)
	if !ok {
		return nil, false
	}
	snapshot := *ent
	return &snapshot, true
}

// Put stores value under key with the default TTL.
func (c *Store) Put(ctx context.Context, key string, value any) {
	c.PutWithTTL(ctx, key, value, 0)
}

/*
PutWithTTL stores value under key. A ttl <= 0 means the store default.

When the key is new and its shard is full, exactly one entry is evicted first, chosen
by the eviction policy. Overwriting an existing key never evicts; the entry starts over
with zero hits.
*/
func (c *Store) PutWithTTL(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	ent := &types.CacheEntry{
		Key:   key,
		Value: value,
		TTL:   ttl,
		Seq:   c.seq.Add(1),
	}
	c.engine.OnWrite(ent, c.engine.Now())

	sh := c.selector.Select(key, c.shards)

	sh.Mu.Lock()
	evicted := ""
	_, exists := sh.Store.Get(key)
	if !exists && sh.Full() {
		evicted = sh.Eviction.Evict()
		if evicted != "" {
			sh.Store.Delete(evicted)
		}
	}
	sh.Store.Put(key, ent)
	sh.Eviction.OnPut(key)
	sh.Mu.Unlock()

	switch {
	case evicted != "":
		c.evictions.Add(1)
		c.engine.Metrics.Eviction()
		c.engine.Logger.WithFields(log.Fields{"evicted": evicted, "key": key}).Debug("cache full, evicted entry")
	case !exists:
		c.size.Add(1)
	}
	c.engine.Metrics.Size(int(c.size.Load()))

	c.engine.Forward(ctx, key, value)
}

// Remove deletes key. Removing a missing key is a no-op.
func (c *Store) Remove(key string) {
	sh := c.selector.Select(key, c.shards)

	sh.Mu.Lock()
	_, ok := sh.Store.Get(key)
	if ok {
		sh.Store.Delete(key)
		sh.Eviction.Remove(key)
	}
	sh.Mu.Unlock()

	if ok {
		c.engine.Metrics.Size(int(c.size.Add(-1)))
	}
}

// Len returns the number of stored entries, expired ones not yet swept included.
func (c *Store) Len() int {
	n := 0
	for _, sh := range c.shards {
		sh.Mu.Lock()
		n += sh.Store.Size()
		sh.Mu.Unlock()
	}
	return n
}

/*
Memoize is the read-through path used by the optimizers.

It returns the cached value for key if there is one. Otherwise compute runs (once per
key across concurrent callers) and a successful result is stored with ttl. Errors
are returned to every waiting caller and never cached. hit reports whether the value
came from the cache without computing.
*/
func (c *Store) Memoize(
	ctx context.Context,
	key string,
	ttl time.Duration,
	compute func(context.Context) (any, error),
) (value any, hit bool, err error) {
	if ent, ok := c.Get(key); ok {
		return ent.Value, true, nil
	}

	value, err, _ = c.sf.Do(key, func() (any, error) {
		// Another caller may have stored it between our miss and this flight.
		if ent, ok := c.Peek(key); ok && !c.engine.IsExpired(ent, c.engine.Now()) {
			return ent.Value, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.PutWithTTL(ctx, key, v, ttl)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, false, nil
}

// Clear drops every entry and resets the counters.
func (c *Store) Clear() {
	for _, sh := range c.shards {
		sh.Mu.Lock()
		sh.Store.Reset()
		sh.Eviction = evict.NewEvictionPolicy(c.policy)
		sh.Mu.Unlock()
	}

	c.size.Store(0)
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.expirations.Store(0)
	c.engine.Metrics.Size(0)
}

// Close stops the sweeper and flushes the write policy. Safe to call more than once.
func (c *Store) Close() {
	c.closeOnce.Do(func() {
		close(c.shutdown)
		<-c.done
		c.engine.Close()
	})
}
