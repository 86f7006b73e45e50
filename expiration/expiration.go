// This file defines how cache entries expire over time.

package expiration

import (
	"fmt"
	"time"

	"github.com/krisalay/ops-engine/types"
)

/*
Strategy is the interface that all expiration rules must follow. The TTL itself lives
on the entry (callers may pass one per write); the strategy decides how ExpireAt moves.
*/
type Strategy interface {

	// IsExpired checks if the entry is expired at now.
	IsExpired(*types.CacheEntry, time.Time) bool

	// OnAccess is called whenever a cache entry is read successfully.
	OnAccess(*types.CacheEntry, time.Time)

	// OnWrite is called whenever a cache entry is written or replaced.
	OnWrite(*types.CacheEntry, time.Time)
}

// Type names a strategy in configuration.
type Type string

const (
	AfterWrite  Type = "after-write"
	AfterAccess Type = "after-access"
)

// New returns the strategy for t. The empty string selects AfterWrite.
func New(t Type) (Strategy, error) {
	switch t {
	case AfterWrite, "":
		return ExpireAfterWrite{}, nil
	case AfterAccess:
		return ExpireAfterAccess{}, nil
	default:
		return nil, fmt.Errorf("unknown expiration strategy %q", t)
	}
}

// ExpireAfterWrite gives every entry a fixed lifetime counted from its creation.
// Reads never extend it.
type ExpireAfterWrite struct{}

func (ExpireAfterWrite) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return ent.Expired(now)
}

func (ExpireAfterWrite) OnAccess(*types.CacheEntry, time.Time) {}

func (ExpireAfterWrite) OnWrite(ent *types.CacheEntry, now time.Time) {
	ent.CreatedAt = now
	ent.ExpireAt = now.Add(ent.TTL)
}

/*
ExpireAfterAccess implements a "sliding TTL". Every read pushes the expiration forward
by the entry's TTL, so results that keep getting requested stay cached.
*/
type ExpireAfterAccess struct{}

func (ExpireAfterAccess) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return ent.Expired(now)
}

func (ExpireAfterAccess) OnAccess(ent *types.CacheEntry, now time.Time) {
	ent.ExpireAt = now.Add(ent.TTL)
}

func (ExpireAfterAccess) OnWrite(ent *types.CacheEntry, now time.Time) {
	ent.CreatedAt = now
	ent.ExpireAt = now.Add(ent.TTL)
}
