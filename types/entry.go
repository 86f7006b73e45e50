package types

import "time"

/*
CacheEntry is one memoized optimization result.

Timestamps and the hit counter are only mutated while the owning shard is locked.
An entry is live while now is not after ExpireAt, which for a fixed TTL is the same as
now - CreatedAt <= TTL.
*/
type CacheEntry struct {
	Key       string
	Value     any
	CreatedAt time.Time
	TTL       time.Duration
	ExpireAt  time.Time

	// HitCount only grows, once per live read.
	HitCount uint64

	// Seq is the store-wide insertion number. Lower means older.
	Seq uint64
}

// Expired reports whether the entry is past its lifetime at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpireAt)
}
