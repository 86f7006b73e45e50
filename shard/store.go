package shard

import (
	"github.com/krisalay/ops-engine/types"
)

// ShardStore is the interface used by a shard to store and retrieve cache entries.
// Implementations are not safe for concurrent use; the shard mutex serializes access.
type ShardStore interface {

	// Get retrieves an entry by key.
	Get(string) (*types.CacheEntry, bool)

	// Put inserts or replaces an entry.
	Put(string, *types.CacheEntry)

	// Delete removes an entry.
	Delete(string)

	// CompareAndDelete removes key only if it still maps to ent.
	CompareAndDelete(string, *types.CacheEntry) bool

	// Range calls fn for every entry until fn returns false.
	Range(fn func(string, *types.CacheEntry) bool)

	// Size returns how many entries are stored.
	Size() int

	// Reset drops every entry.
	Reset()
}

// mapStore is a plain map. Every read mutates the entry's hit count, so the
// lock-free copy-on-write approach buys nothing here.
type mapStore struct {
	data map[string]*types.CacheEntry
}

func NewMapStore() ShardStore {
	return &mapStore{data: make(map[string]*types.CacheEntry)}
}

func (s *mapStore) Get(key string) (*types.CacheEntry, bool) {
	ent, ok := s.data[key]
	return ent, ok
}

func (s *mapStore) Put(key string, ent *types.CacheEntry) {
	s.data[key] = ent
}

func (s *mapStore) Delete(key string) {
	delete(s.data, key)
}

func (s *mapStore) CompareAndDelete(key string, ent *types.CacheEntry) bool {
	if cur, ok := s.data[key]; !ok || cur != ent {
		return false
	}
	delete(s.data, key)
	return true
}

func (s *mapStore) Range(fn func(string, *types.CacheEntry) bool) {
	for k, v := range s.data {
		if !fn(k, v) {
			return
		}
	}
}

func (s *mapStore) Size() int {
	return len(s.data)
}

func (s *mapStore) Reset() {
	s.data = make(map[string]*types.CacheEntry)
}
