package cache

// Stats is a point-in-time snapshot of a cache's basic statistics.
type Stats struct {
	Capacity int     `json:"capacity"`
	Size     int     `json:"size"`
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRatio float64 `json:"hit_ratio"` // hits / (hits + misses), 0 when nothing was looked up
}

// DetailedStats extends Stats with memory usage and access history.
type DetailedStats[K comparable] struct {
	Stats

	// Evictions counts entries dropped by capacity pressure (Put or Resize).
	Evictions uint64 `json:"evictions"`

	// MemoryUsageBytes is the summed size of cached values that report one.
	MemoryUsageBytes int64   `json:"memory_usage_bytes"`
	MemoryUsageMB    float64 `json:"memory_usage_mb"`

	// RecentKeys lists recently touched keys, most recent first.
	RecentKeys []K `json:"recent_keys"`

	// KeyFrequencies counts hits per resident key.
	KeyFrequencies map[K]uint64 `json:"key_frequencies"`
}

func hitRatio(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}
