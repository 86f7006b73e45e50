package engine

import (
	"context"
	"time"

	"github.com/apex/log"

	"github.com/krisalay/ops-engine/expiration"
	"github.com/krisalay/ops-engine/types"
	"github.com/krisalay/ops-engine/writepolicy"
)

/*
CacheEngine is the policy layer of the result cache.
It is responsible for the "behavior" of the cache, NOT storage.

It decides:
- When an entry is expired
- How expiry moves on reads and writes
- Where fresh results are forwarded (write policy)
- Where cache events are reported (metrics, logs)

It does NOT:
- Store data
- Handle sharding
- Handle locking
- Decide eviction order
*/
type CacheEngine struct {

	// Expiration controls when an entry is too old. Never nil after NewCacheEngine.
	Expiration expiration.Strategy

	// WritePolicy forwards newly cached results to the host's sink.
	// If nil, results stay only in memory.
	WritePolicy writepolicy.WritePolicy

	// Metrics receives hit/miss/eviction/expiry events. Never nil after NewCacheEngine.
	Metrics types.Metrics

	// Logger is used for cache-level diagnostics. Never nil after NewCacheEngine.
	Logger log.Interface

	// Now is the clock. Tests replace it to step over TTL boundaries.
	Now func() time.Time
}

/*
NewCacheEngine creates a CacheEngine, filling nil collaborators with defaults so the
rest of the cache never has to nil-check them.
*/
func NewCacheEngine(
	exp expiration.Strategy,
	writePolicy writepolicy.WritePolicy,
	metrics types.Metrics,
	logger log.Interface,
) *CacheEngine {
	if exp == nil {
		exp = expiration.ExpireAfterWrite{}
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = log.Log
	}

	return &CacheEngine{
		Expiration:  exp,
		WritePolicy: writePolicy,
		Metrics:     metrics,
		Logger:      logger,
		Now:         time.Now,
	}
}

// IsExpired checks whether a cache entry is expired at now.
func (e *CacheEngine) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return e.Expiration.IsExpired(ent, now)
}

/*
OnRead is called for every live read, with the shard locked.
It counts the hit on the entry and lets the expiration strategy react.
*/
func (e *CacheEngine) OnRead(ent *types.CacheEntry, now time.Time) {
	ent.HitCount++
	e.Expiration.OnAccess(ent, now)
}

// OnWrite stamps a new entry's creation and expiry times.
func (e *CacheEngine) OnWrite(ent *types.CacheEntry, now time.Time) {
	e.Expiration.OnWrite(ent, now)
}

// Forward hands a newly stored result to the write policy, if any.
// Call it without holding a shard lock: write-through sinks may be slow.
func (e *CacheEngine) Forward(ctx context.Context, key string, value any) {
	if e.WritePolicy != nil {
		e.WritePolicy.OnWrite(ctx, key, value)
	}
}

// Close flushes the write policy.
func (e *CacheEngine) Close() {
	if e.WritePolicy != nil {
		e.WritePolicy.Close()
	}
}
