// Package clock implements the node's Lamport counter and vector-clock
// bookkeeping (spec.md C1 §4.1). It is the lowest leaf in the dependency
// order: every other component reads time and causal ordering through it.
package clock

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sync"

	"github.com/synnergy-collab/nodecore/internal/nodeerr"
)

var hexID = regexp.MustCompile(`^[0-9a-f]{64}$`)

// NormalizeID returns id unchanged if it is already a lowercase 64-char hex
// string (spec.md §3, §6), otherwise it returns the hex SHA-256 digest of
// id, matching "Any externally supplied identifier that is not valid 64-hex
// is normalized by SHA-256 before use".
func NormalizeID(id string) string {
	if hexID.MatchString(id) {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// VectorClock maps node identity to a monotonic counter. Missing entries
// are treated as 0 everywhere in this package.
type VectorClock map[string]uint64

// Clone returns a deep copy.
func (vc VectorClock) Clone() VectorClock {
	out := make(VectorClock, len(vc))
	for k, v := range vc {
		out[k] = v
	}
	return out
}

// Relation is the result of comparing two vector clocks.
type Relation int

const (
	Equal Relation = iota
	Before
	After
	Concurrent
)

// Compare implements spec.md §3's pairwise vector-clock ordering: vc1 < vc2
// iff every component of vc1 is <= the corresponding component of vc2 and at
// least one is strictly less. Symmetric for After; otherwise Concurrent.
func Compare(a, b VectorClock) Relation {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}

	aLessSomewhere, bLessSomewhere := false, false
	for k := range keys {
		av, bv := a[k], b[k]
		switch {
		case av < bv:
			aLessSomewhere = true
		case av > bv:
			bLessSomewhere = true
		}
	}

	switch {
	case !aLessSomewhere && !bLessSomewhere:
		return Equal
	case aLessSomewhere && !bLessSomewhere:
		return Before
	case !aLessSomewhere && bLessSomewhere:
		return After
	default:
		return Concurrent
	}
}

// Clock owns the local Lamport counter and vector clock for one node.
type Clock struct {
	mu     sync.Mutex
	nodeID string
	vc     VectorClock
}

// New constructs a Clock for nodeID, normalizing it per spec.md §6.
func New(nodeID string) *Clock {
	return &Clock{
		nodeID: NormalizeID(nodeID),
		vc:     VectorClock{},
	}
}

// NodeID returns the normalized local identity.
func (c *Clock) NodeID() string { return c.nodeID }

// Tick atomically increments the local Lamport counter and stores the new
// value as the own-node component of the vector clock (spec.md §4.1).
func (c *Clock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vc[c.nodeID]++
	return c.vc[c.nodeID]
}

// CurrentVectorClock returns a snapshot of the local vector clock.
func (c *Clock) CurrentVectorClock() VectorClock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc.Clone()
}

// UpdateFromRemote sets each component of the local vector clock to the
// pairwise maximum of the local component and the incoming value (spec.md
// §4.1). remoteNodeID is normalized and rejected with InvalidArgument if it
// normalizes to the empty value.
func (c *Clock) UpdateFromRemote(remoteNodeID string, remote VectorClock) error {
	if NormalizeID(remoteNodeID) == "" {
		return nodeerr.New(nodeerr.InvalidArgument, "remote node id normalizes to empty value")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range remote {
		if v > c.vc[k] {
			c.vc[k] = v
		}
	}
	return nil
}

// Restore resets the Lamport counter to the own-node component of vc, used
// by CRDT deserialize (spec.md §4.3: "on deserialize, the Lamport counter is
// restored to the own-node component of the loaded vector clock").
func (c *Clock) Restore(vc VectorClock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vc = vc.Clone()
}
