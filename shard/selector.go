package shard

import "github.com/cespare/xxhash/v2"

/*
Selector decides which shard handles a given key.
The cache does not care HOW this decision is made. Different strategies can be plugged in.
*/
type Selector interface {
	Select(string, []*Shard) *Shard
}

// HashSelector maps a key to a shard by its xxhash64 digest. Cache keys are already
// hashes of their inputs, so the spread is even without extra mixing.
type HashSelector struct{}

func (HashSelector) Select(key string, shards []*Shard) *Shard {
	if len(shards) == 1 {
		return shards[0]
	}
	return shards[xxhash.Sum64String(key)%uint64(len(shards))]
}
