package dht

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-collab/nodecore/internal/secrand"
	"github.com/synnergy-collab/nodecore/internal/timesource"
)

// staleThreshold is the minimum quiet duration before a bucket occupant
// becomes eligible for replacement (spec.md §4.6).
const staleThreshold = time.Hour

// Table is the Kademlia-style routing table for one local node.
type Table struct {
	mu      sync.Mutex
	selfID  string
	buckets [NumBuckets][]*Node
	now     timesource.Source
	log     *logrus.Entry
}

// New constructs a routing table for selfID.
func New(selfID string, now timesource.Source, log *logrus.Entry) *Table {
	return &Table{selfID: selfID, now: now, log: log}
}

// AddNode inserts or refreshes node in the table (spec.md §4.6).
func (t *Table) AddNode(n Node) {
	if n.ID == t.selfID {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := bucketIndex(t.selfID, n.ID)
	bucket := t.buckets[idx]

	for i, existing := range bucket {
		if existing.ID == n.ID {
			existing.Address = n.Address
			existing.LastSeen = n.LastSeen
			bucket = append(append(bucket[:i], bucket[i+1:]...), existing)
			t.buckets[idx] = bucket
			return
		}
	}

	fresh := &Node{ID: n.ID, Address: n.Address, LastSeen: n.LastSeen}
	if len(bucket) < BucketSize {
		t.buckets[idx] = append(bucket, fresh)
		return
	}

	oldest := bucket[0]
	if t.now.NowMillis()-oldest.LastSeen >= staleThreshold.Milliseconds() {
		t.buckets[idx] = append(bucket[1:], fresh)
		if t.log != nil {
			t.log.WithField("evicted", oldest.ID).Debug("dht bucket replaced stale node")
		}
		return
	}
	// Bucket is full and its least-recently-seen occupant is still
	// fresh: reject the newcomer.
}

// FindClosestNodes returns up to k known nodes sorted by ascending XOR
// distance to target, excluding self.
func (t *Table) FindClosestNodes(target string, k int) []Node {
	t.mu.Lock()
	all := t.allLocked()
	t.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		return distance(target, all[i].ID).Cmp(distance(target, all[j].ID)) < 0
	})
	if k < len(all) {
		all = all[:k]
	}
	return all
}

// RemoveNode deletes a node by identifier.
func (t *Table) RemoveNode(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := bucketIndex(t.selfID, id)
	bucket := t.buckets[idx]
	for i, n := range bucket {
		if n.ID == id {
			t.buckets[idx] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

// LookupNode returns the node with the given identifier, if known.
func (t *Table) LookupNode(id string) (Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := bucketIndex(t.selfID, id)
	for _, n := range t.buckets[idx] {
		if n.ID == id {
			return *n, true
		}
	}
	return Node{}, false
}

// GetAllNodes returns every node currently in the table.
func (t *Table) GetAllNodes() []Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allLocked()
}

func (t *Table) allLocked() []Node {
	var out []Node
	for _, bucket := range t.buckets {
		for _, n := range bucket {
			out = append(out, *n)
		}
	}
	return out
}

// GetRandomNodes returns up to n nodes chosen uniformly at random, using
// src for randomness (spec.md C8 uses this to mix DHT nodes into the
// peer-list response).
func (t *Table) GetRandomNodes(n int, src secrand.Source) []Node {
	all := t.GetAllNodes()
	if n >= len(all) {
		return all
	}
	r := rand.New(rand.NewSource(seedFrom(src)))
	r.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:n]
}

func seedFrom(src secrand.Source) int64 {
	var buf [8]byte
	if src == nil {
		return 0
	}
	if _, err := src.Read(buf[:]); err != nil {
		return 0
	}
	var seed int64
	for _, b := range buf {
		seed = seed<<8 | int64(b)
	}
	return seed
}

// Bootstrap seeds the table with statically configured peers, hashing an
// identity for any seed that omits one (spec.md §4.6).
func (t *Table) Bootstrap(seeds []Node) {
	for _, s := range seeds {
		if s.ID == "" {
			s.ID = HashIdentity(s.Address)
		}
		if s.LastSeen == 0 {
			s.LastSeen = t.now.NowMillis()
		}
		t.AddNode(s)
	}
}
