package shard

import (
	"sync"

	"github.com/krisalay/ops-engine/eviction"
)

/*
A Shard is a small, independent piece of the cache. Each shard holds a portion of the
entries, has its own eviction bookkeeping and its own lock. With a single shard the
capacity and eviction order are global.
*/
type Shard struct {

	// Store holds the key → entry data for this shard.
	Store ShardStore

	// Eviction decides which key goes when the shard is full.
	Eviction eviction.Policy

	// Capacity is the most entries this shard may hold.
	Capacity int

	// Mu guards Store, Eviction and the mutable fields of stored entries.
	// Reads take it too: a live read bumps the entry's hit count.
	Mu sync.Mutex
}

func NewShard(ev eviction.Policy, capacity int) *Shard {
	return &Shard{
		Store:    NewMapStore(),
		Eviction: ev,
		Capacity: capacity,
	}
}

// Full reports whether inserting a new key requires an eviction first.
// The caller must hold Mu.
func (s *Shard) Full() bool {
	return s.Store.Size() >= s.Capacity
}
