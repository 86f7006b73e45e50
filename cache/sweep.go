package cache

import (
	"context"
	"time"

	"github.com/krisalay/ops-engine/types"
)

/*
Sweep deletes every entry whose lifetime has elapsed and returns how many it removed.

Lookups also remove expired entries, so a key found expired here may already be gone
by the time its shard is locked. Removal is compare-and-delete: an entry that was
removed or replaced in the meantime is skipped.
*/
func (c *Store) Sweep() int {
	now := c.engine.Now()
	removed := 0

	for _, sh := range c.shards {
		sh.Mu.Lock()
		var expired []*types.CacheEntry
		sh.Store.Range(func(_ string, ent *types.CacheEntry) bool {
			if c.engine.IsExpired(ent, now) {
				expired = append(expired, ent)
			}
			return true
		})
		for _, ent := range expired {
			if sh.Store.CompareAndDelete(ent.Key, ent) {
				sh.Eviction.Remove(ent.Key)
				removed++
			}
		}
		sh.Mu.Unlock()
	}

	if removed > 0 {
		c.expirations.Add(uint64(removed))
		for i := 0; i < removed; i++ {
			c.engine.Metrics.Expire()
		}
		c.engine.Metrics.Size(int(c.size.Add(int64(-removed))))
	}
	return removed
}

// sweepLoop runs Sweep on every tick until shutdown.
func (c *Store) sweepLoop(ctx context.Context, interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.engine.Logger.WithField("removed", n).Debug("swept expired cache entries")
			}
		}
	}
}
