package cache

import "github.com/krisalay/ops-engine/types"

// Stats returns hit/miss accounting and the current size.
func (c *Store) Stats() types.Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	s := types.Stats{
		Size:        c.Len(),
		HitCount:    hits,
		MissCount:   misses,
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total) * 100
		s.MissRate = float64(misses) / float64(total) * 100
	}
	return s
}
