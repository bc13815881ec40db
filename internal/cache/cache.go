package cache

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-collab/nodecore/internal/timesource"
)

// Cache is the spec.md C5 three-tier LRU: L1 and L2 are bounded
// hashicorp/golang-lru caches wired with eviction callbacks so that an L1
// eviction demotes into L2 and an L2 eviction demotes into L3; L3 is an
// unbounded map, the terminal tier before an entry is dropped entirely.
type Cache struct {
	mu sync.Mutex

	l1 *lru.Cache[string, *entry]
	l2 *lru.Cache[string, *entry]
	l3 map[string]*entry

	now timesource.Source
	log *logrus.Entry

	accessCounter uint64
	hits          uint64
	misses        uint64
	evictions     uint64
}

// Sizes bounds the L1 and L2 tiers (spec.md §6: cache.l1Size, cache.l2Size).
// L3 has no capacity limit; entries leave it only via TTL expiry or
// explicit invalidation.
type Sizes struct {
	L1 int
	L2 int
}

// New constructs a Cache with the given tier sizes.
func New(sizes Sizes, now timesource.Source, log *logrus.Entry) (*Cache, error) {
	if sizes.L1 <= 0 {
		sizes.L1 = 128
	}
	if sizes.L2 <= 0 {
		sizes.L2 = 512
	}
	c := &Cache{
		l3:  make(map[string]*entry),
		now: now,
		log: log,
	}

	l2, err := lru.NewWithEvict[string, *entry](sizes.L2, c.onL2Evict)
	if err != nil {
		return nil, err
	}
	l1, err := lru.NewWithEvict[string, *entry](sizes.L1, c.onL1Evict)
	if err != nil {
		return nil, err
	}
	c.l1 = l1
	c.l2 = l2
	return c, nil
}

// onL1Evict demotes an entry evicted from L1 down into L2 (spec.md §4.5:
// "eviction from L1 demotes the victim into L2"). Demotion out of a tier
// counts as an eviction from that tier (spec.md §4.5).
func (c *Cache) onL1Evict(key string, e *entry) {
	e.level = L2
	c.l2.Add(key, e)
	atomic.AddUint64(&c.evictions, 1)
	if c.log != nil {
		c.log.WithField("key", key).Debug("cache entry demoted to L2")
	}
}

// onL2Evict demotes an entry evicted from L2 down into the unbounded L3.
func (c *Cache) onL2Evict(key string, e *entry) {
	e.level = L3
	c.l3[key] = e
	atomic.AddUint64(&c.evictions, 1)
	if c.log != nil {
		c.log.WithField("key", key).Debug("cache entry demoted to L3")
	}
}

func (c *Cache) nextAccessOrder() uint64 {
	return atomic.AddUint64(&c.accessCounter, 1)
}

// Put inserts value at L1 with the given TTL (0 means no expiry), matching
// spec.md §4.5's write path: new writes always land at the top tier.
func (c *Cache) Put(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A key already resident in a lower tier is cleared first so it isn't
	// duplicated across tiers.
	c.l2.Remove(key)
	delete(c.l3, key)

	e := &entry{
		key:         key,
		value:       value,
		ttl:         ttl,
		createdAt:   c.now.NowMillis(),
		accessedAt:  c.now.NowMillis(),
		level:       L1,
		accessOrder: c.nextAccessOrder(),
	}
	c.l1.Add(key, e)
}

// Get searches L1, then L2, then L3. A hit in L2 or L3 promotes the entry
// one tier up (spec.md §4.5). Expired entries are treated as misses and
// removed.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.l1.Get(key); ok {
		if c.expired(e) {
			c.l1.Remove(key)
			c.recordMiss()
			return nil, false
		}
		c.touch(e)
		c.recordHit()
		return e.value, true
	}

	if e, ok := c.l2.Peek(key); ok {
		if c.expired(e) {
			c.l2.Remove(key)
			c.recordMiss()
			return nil, false
		}
		c.l2.Remove(key)
		c.touch(e)
		e.level = L1
		c.l1.Add(key, e)
		c.recordHit()
		return e.value, true
	}

	if e, ok := c.l3[key]; ok {
		if c.expired(e) {
			delete(c.l3, key)
			c.recordMiss()
			return nil, false
		}
		delete(c.l3, key)
		c.touch(e)
		e.level = L2
		c.l2.Add(key, e)
		c.recordHit()
		return e.value, true
	}

	c.recordMiss()
	return nil, false
}

func (c *Cache) touch(e *entry) {
	e.accessedAt = c.now.NowMillis()
	e.accessOrder = c.nextAccessOrder()
}

func (c *Cache) expired(e *entry) bool {
	if e.ttl <= 0 {
		return false
	}
	return time.Duration(c.now.NowMillis()-e.createdAt)*time.Millisecond >= e.ttl
}

func (c *Cache) recordHit()  { atomic.AddUint64(&c.hits, 1) }
func (c *Cache) recordMiss() { atomic.AddUint64(&c.misses, 1) }

// Invalidate removes key from every tier.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.l1.Remove(key)
	c.l2.Remove(key)
	delete(c.l3, key)
}

// Clear empties every tier and resets the hit/miss/eviction counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.l1.Purge()
	c.l2.Purge()
	c.l3 = make(map[string]*entry)
	atomic.StoreUint64(&c.hits, 0)
	atomic.StoreUint64(&c.misses, 0)
	atomic.StoreUint64(&c.evictions, 0)
}

// Stats reports the spec.md §4.5 statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Hits:      hits,
		Misses:    misses,
		Evictions: atomic.LoadUint64(&c.evictions),
		Size:      c.l1.Len() + c.l2.Len() + len(c.l3),
		HitRate:   rate,
	}
}
