// Package cache implements the multi-tier L1/L2/L3 LRU cache (spec.md C5
// §4.5), built on hashicorp/golang-lru/v2's eviction-callback LRU to drive
// the L1→L2→L3 demotion chain: an L1 eviction callback inserts the victim
// into L2, whose own eviction callback inserts into the unbounded L3.
package cache

import "time"

// Level names one of the cache's three tiers (spec.md §3).
type Level int

const (
	L1 Level = iota
	L2
	L3
)

func (l Level) String() string {
	switch l {
	case L1:
		return "L1"
	case L2:
		return "L2"
	default:
		return "L3"
	}
}

// entry is the internal record for one cached value.
type entry struct {
	key         string
	value       []byte
	ttl         time.Duration
	createdAt   int64
	accessedAt  int64
	level       Level
	accessOrder uint64
}

// Stats mirrors spec.md §4.5's exposed statistics.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	HitRate   float64
}
