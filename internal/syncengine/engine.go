package syncengine

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-collab/nodecore/internal/clock"
	"github.com/synnergy-collab/nodecore/internal/crdt"
)

// Engine implements spec.md C9: a pending-operation queue plus state flag
// coupling the local replica to peer broadcast.
type Engine struct {
	mu      sync.Mutex
	replica *crdt.Replica
	pending []crdt.Operation
	state   State

	conflicts uint64
	log       *logrus.Entry
}

// New constructs an Engine bound to replica.
func New(replica *crdt.Replica, log *logrus.Entry) *Engine {
	return &Engine{replica: replica, state: StateOK, log: log}
}

// TrackChange enqueues op for broadcast and moves the state machine to
// PENDING (spec.md §4.9).
func (e *Engine) TrackChange(op crdt.Operation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, op)
	if e.state != StateConflict {
		e.state = StatePending
	}
}

// BroadcastChanges drains and returns the pending queue; the caller is
// responsible for transmitting the result via the peer transport (spec.md
// §4.9). The state returns to OK once the queue empties, unless a
// conflict was detected since the last flush.
func (e *Engine) BroadcastChanges() []crdt.Operation {
	e.mu.Lock()
	defer e.mu.Unlock()
	drained := e.pending
	e.pending = nil
	if e.state == StatePending {
		e.state = StateOK
	}
	return drained
}

// ApplyRemoteChanges merges ops from fromNodeID into the local replica. If
// any incoming operation is concurrent with a pre-existing local entry at
// the same key, the conflict counter is incremented and the state moves
// to CONFLICT (spec.md §4.9).
func (e *Engine) ApplyRemoteChanges(ops []crdt.Operation, fromNodeID string) int {
	conflicted := false
	for _, op := range ops {
		if existingVC, ok := e.replica.VectorClockAt(op.Key); ok {
			if clock.Compare(existingVC, op.VectorClock) == clock.Concurrent {
				conflicted = true
			}
		}
	}

	applied := e.replica.Merge(ops)

	e.mu.Lock()
	defer e.mu.Unlock()
	if conflicted {
		atomic.AddUint64(&e.conflicts, 1)
		e.state = StateConflict
		if e.log != nil {
			e.log.WithField("fromNodeId", fromNodeID).Warn("sync conflict detected")
		}
	} else if e.state == StatePending && len(e.pending) == 0 {
		e.state = StateOK
	}
	return applied
}

// ChangesSince delegates to the replica (spec.md §4.9).
func (e *Engine) ChangesSince(vc clock.VectorClock) []crdt.Operation {
	return e.replica.ChangesSince(vc)
}

// ForceFullSync returns the entire operation log, as if requested from the
// empty vector clock (spec.md §4.9).
func (e *Engine) ForceFullSync() []crdt.Operation {
	return e.replica.ChangesSince(clock.VectorClock{})
}

// State returns the engine's current sync state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ConflictCount returns the running total of detected conflicts.
func (e *Engine) ConflictCount() uint64 {
	return atomic.LoadUint64(&e.conflicts)
}

// MarkError transitions the engine into the ERROR state, reserved for
// transport-level failures (spec.md §4.9).
func (e *Engine) MarkError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateError
}

// PendingLen reports the number of operations currently queued for
// broadcast.
func (e *Engine) PendingLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}
