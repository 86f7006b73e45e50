package types

// Stats is a point-in-time snapshot of cache effectiveness.
// Rates are percentages in [0, 100]; both are 0 before the first lookup.
type Stats struct {
	HitRate     float64 `json:"hitRate"`
	MissRate    float64 `json:"missRate"`
	Size        int     `json:"cacheSize"`
	HitCount    uint64  `json:"hitCount"`
	MissCount   uint64  `json:"missCount"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
}
