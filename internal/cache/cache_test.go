package cache

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-collab/nodecore/internal/timesource"
)

func newTestCache(t *testing.T, l1, l2 int) (*Cache, *timesource.Fixed) {
	t.Helper()
	now := &timesource.Fixed{Millis: 1000}
	c, err := New(Sizes{L1: l1, L2: l2}, now, logrus.NewEntry(logrus.New()))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return c, now
}

func TestPutGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, 4, 4)
	c.Put("a", []byte("1"), 0)

	v, ok := c.Get("a")
	if !ok || string(v) != "1" {
		t.Fatalf("expected hit with value 1, got ok=%v v=%q", ok, v)
	}
}

func TestMissIncrementsCounter(t *testing.T) {
	c, _ := newTestCache(t, 4, 4)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss")
	}
	if s := c.Stats(); s.Misses != 1 {
		t.Fatalf("expected 1 miss, got %d", s.Misses)
	}
}

func TestL1EvictionDemotesToL2(t *testing.T) {
	c, _ := newTestCache(t, 2, 4)
	c.Put("a", []byte("1"), 0)
	c.Put("b", []byte("2"), 0)
	c.Put("c", []byte("3"), 0) // evicts least-recently-used L1 entry ("a") into L2

	if _, ok := c.l2.Peek("a"); !ok {
		t.Fatal("expected evicted L1 entry to be demoted into L2")
	}
	if c.l1.Len() != 2 {
		t.Fatalf("expected L1 to stay at capacity 2, got %d", c.l1.Len())
	}
}

func TestL2EvictionDemotesToL3(t *testing.T) {
	c, _ := newTestCache(t, 1, 1)
	c.Put("a", []byte("1"), 0) // L1: [a]
	c.Put("b", []byte("2"), 0) // evicts a -> L2: [a]; L1: [b]           (1 eviction: a L1->L2)
	c.Put("c", []byte("3"), 0) // evicts b -> L2: [b], evicting a -> L3: [a]; L1: [c] (2 more: b L1->L2, a L2->L3)

	if _, ok := c.l3["a"]; !ok {
		t.Fatal("expected entry evicted from L2 to land in L3")
	}
	if s := c.Stats(); s.Evictions != 3 {
		t.Fatalf("expected 3 recorded evictions (every tier demotion counts), got %d", s.Evictions)
	}
}

func TestGetFromL2Promotes(t *testing.T) {
	c, _ := newTestCache(t, 1, 4)
	c.Put("a", []byte("1"), 0)
	c.Put("b", []byte("2"), 0) // evicts a into L2

	v, ok := c.Get("a")
	if !ok || string(v) != "1" {
		t.Fatalf("expected hit for demoted key, got ok=%v", ok)
	}
	if _, stillInL2 := c.l2.Peek("a"); stillInL2 {
		t.Fatal("expected promoted entry to leave L2")
	}
	if _, inL1 := c.l1.Peek("a"); !inL1 {
		t.Fatal("expected promoted entry to land in L1")
	}
}

func TestGetFromL3Promotes(t *testing.T) {
	c, _ := newTestCache(t, 1, 1)
	c.Put("a", []byte("1"), 0)
	c.Put("b", []byte("2"), 0)
	c.Put("c", []byte("3"), 0) // "a" now sits in L3

	v, ok := c.Get("a")
	if !ok || string(v) != "1" {
		t.Fatalf("expected hit for L3 key, got ok=%v", ok)
	}
	if _, stillInL3 := c.l3["a"]; stillInL3 {
		t.Fatal("expected promoted entry to leave L3")
	}
	if _, inL2 := c.l2.Peek("a"); !inL2 {
		t.Fatal("expected L3 hit to promote into L2, not L1")
	}
}

func TestTTLExpiry(t *testing.T) {
	c, now := newTestCache(t, 4, 4)
	c.Put("a", []byte("1"), 500*time.Millisecond)

	now.Advance(600 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to read as a miss")
	}
}

func TestInvalidateRemovesFromEveryTier(t *testing.T) {
	c, _ := newTestCache(t, 1, 1)
	c.Put("a", []byte("1"), 0)
	c.Put("b", []byte("2"), 0)
	c.Put("c", []byte("3"), 0) // "a" demoted to L3

	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected invalidated key to be absent everywhere")
	}
}

func TestStatsHitRate(t *testing.T) {
	c, _ := newTestCache(t, 4, 4)
	c.Put("a", []byte("1"), 0)
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got %+v", s)
	}
	if s.HitRate != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %f", s.HitRate)
	}
}
