package api

import (
	"context"
	"time"

	"github.com/krisalay/ops-engine/types"
)

/*
Cache defines the public contract of the result cache used by the optimizers.
Sharding, eviction, expiry, write policies and locking all stay behind it.

None of these methods return errors: a miss is a normal outcome, not a fault.
*/
type Cache interface {

	/*
		Get returns the live entry for key.

		BEHAVIOR:
		-------------------
		1. Key present and not expired: the entry's hit count is incremented and a
		   copy is returned (cache hit).
		2. Key absent or expired: an expired entry is deleted on the way; nothing is
		   loaded (cache miss).

		Every call counts toward exactly one of the global hit or miss counters.
	*/
	Get(key string) (*types.CacheEntry, bool)

	/*
		Put stores a result with the default TTL.

		- Evicts one entry first when the key is new and the cache is full
		- The new entry starts with zero hits
		- Forwards the result to the configured write policy, if any
	*/
	Put(ctx context.Context, key string, value any)

	// PutWithTTL is Put with an explicit time-to-live. ttl <= 0 means the default.
	PutWithTTL(ctx context.Context, key string, value any, ttl time.Duration)

	/*
		Memoize returns the cached value for key, or computes, stores and returns it.
		Concurrent misses on one key share a single computation. Errors are not cached.
	*/
	Memoize(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (any, error)) (any, bool, error)

	// Remove deletes a key. Removing a non-existing key is safe.
	Remove(key string)

	// Sweep purges expired entries now and reports how many were removed.
	// It normally runs on a background timer.
	Sweep() int

	// Stats reports hit/miss rates, counters and the current size.
	Stats() types.Stats

	// Clear empties the cache and resets its counters.
	Clear()

	/*
		Close gracefully shuts down the cache.

		- Stops the background sweep
		- Flushes pending write-back operations
	*/
	Close()
}
