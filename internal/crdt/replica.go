package crdt

import (
	"sync"

	"github.com/synnergy-collab/nodecore/internal/clock"
	"github.com/synnergy-collab/nodecore/internal/logging"
	"github.com/synnergy-collab/nodecore/internal/nodeerr"
	"github.com/synnergy-collab/nodecore/internal/timesource"
)

// Config bounds a Replica per spec.md §6's crdt.* configuration group.
type Config struct {
	MaxOperations     int
	TombstoneLifetime int64 // milliseconds
}

// Replica implements spec.md C3: a keyed map under eventually-consistent
// semantics with deterministic conflict resolution. The map, log, and
// vector clock are guarded by a single writer lock; readers take a read
// lock for Get/Snapshot/ChangesSince (spec.md §5).
type Replica struct {
	mu     sync.RWMutex
	data   map[string]*Entry
	log    *opLog
	clock  *clock.Clock
	cfg    Config
	now    timesource.Source
	logger *logging.Logger

	droppedInvalid uint64
}

// New constructs a Replica bound to the given node Clock.
func New(c *clock.Clock, cfg Config, now timesource.Source, logger *logging.Logger) *Replica {
	if cfg.MaxOperations <= 0 {
		cfg.MaxOperations = 10000
	}
	return &Replica{
		data:   make(map[string]*Entry),
		log:    newOpLog(cfg.MaxOperations),
		clock:  c,
		cfg:    cfg,
		now:    now,
		logger: logger,
	}
}

// Set increments the clock, composes and hashes a "set" operation, applies
// it locally, appends it to the log, and returns it (spec.md §4.3).
func (r *Replica) Set(key string, value []byte) (Operation, error) {
	return r.emit(key, value, OpSet)
}

// Delete is like Set but of type "delete" with no value (spec.md §4.3).
func (r *Replica) Delete(key string) (Operation, error) {
	return r.emit(key, nil, OpDelete)
}

func (r *Replica) emit(key string, value []byte, typ OpType) (Operation, error) {
	lamport := r.clock.Tick()
	vc := r.clock.CurrentVectorClock()

	op := Operation{
		NodeID:       r.clock.NodeID(),
		Timestamp:    r.now.NowMillis(),
		LamportClock: lamport,
		Type:         typ,
		Key:          key,
		Value:        value,
		VectorClock:  vc,
	}
	hash, err := op.ComputeHash()
	if err != nil {
		return Operation{}, nodeerr.Wrap(err, nodeerr.IoError, "compute operation hash")
	}
	op.Hash = hash

	// The log always truncates to cfg.MaxOperations by evicting the oldest
	// entry (spec.md §3), so LogOverflow in spec.md §4.3 is unreachable for
	// this append-and-evict implementation; it is reserved for a future
	// backing store that could refuse truncation (e.g. a durable log with
	// readers still referencing the oldest segment).
	r.mu.Lock()
	r.applyLocked(op)
	r.log.append(op)
	r.mu.Unlock()

	return op, nil
}

// Get returns the current value for key, or absent if no entry exists or
// the entry is tombstoned (spec.md §4.3).
func (r *Replica) Get(key string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ent, ok := r.data[key]
	if !ok || ent.Tombstone {
		return nil, false
	}
	return append([]byte(nil), ent.Value...), true
}

// VectorClockAt returns the stored vector clock for key, if any entry
// exists there (tombstoned or not). Used by the sync engine to detect
// whether an incoming operation is concurrent with the local entry before
// merging it (spec.md C9 §4.9).
func (r *Replica) VectorClockAt(key string) (clock.VectorClock, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ent, ok := r.data[key]
	if !ok {
		return nil, false
	}
	return ent.VectorClock.Clone(), true
}

// Merge applies each incoming operation, verifying its hash, skipping
// duplicates by hash, and returns the count of newly applied operations.
// Tampered operations are discarded and logged; they never abort the merge
// (spec.md §4.3, §7).
func (r *Replica) Merge(ops []Operation) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied := 0
	for _, op := range ops {
		if !op.VerifyHash() {
			r.droppedInvalid++
			if r.logger != nil {
				r.logger.Warn("dropping tampered crdt operation", map[string]any{
					"key": op.Key, "nodeId": op.NodeID,
				})
			}
			continue
		}
		if r.log.seen(op.Hash) {
			continue
		}
		r.applyLocked(op)
		r.log.append(op)
		applied++
	}
	return applied
}

// applyLocked runs the merge-of-a-single-operation algorithm from spec.md
// §4.3. Callers must hold r.mu for writing.
func (r *Replica) applyLocked(op Operation) {
	_ = r.clock.UpdateFromRemote(op.NodeID, op.VectorClock)

	existing, ok := r.data[op.Key]
	if !ok {
		r.data[op.Key] = newEntryFromOp(op)
		return
	}

	rel := clock.Compare(existing.VectorClock, op.VectorClock)
	switch rel {
	case clock.Before:
		// op is strictly after the existing entry: replace.
		r.applyWinner(existing, op)
	case clock.After, clock.Equal:
		// op is stale relative to the existing entry: discard.
		return
	case clock.Concurrent:
		if winnerIsIncoming(op, existing) {
			r.applyWinner(existing, op)
		}
		// losing side is left untouched.
	}
}

// applyWinner writes the winning operation's effect onto an existing entry.
func (r *Replica) applyWinner(existing *Entry, op Operation) {
	if op.Type == OpDelete {
		existing.Tombstone = true
		existing.Value = nil
	} else {
		existing.Tombstone = false
		existing.Value = append([]byte(nil), op.Value...)
	}
	existing.VectorClock = op.VectorClock.Clone()
	existing.LastModified = op.Timestamp
	existing.ModifiedBy = op.NodeID
}

func newEntryFromOp(op Operation) *Entry {
	e := &Entry{
		VectorClock:  op.VectorClock.Clone(),
		LastModified: op.Timestamp,
		ModifiedBy:   op.NodeID,
	}
	if op.Type == OpDelete {
		e.Tombstone = true
	} else {
		e.Value = append([]byte(nil), op.Value...)
	}
	return e
}

// winnerIsIncoming implements the deterministic tie-break for concurrent
// operations (spec.md §4.3, §8 property 2): higher Lamport component wins;
// on a tie, the lexicographically smaller node identity wins.
func winnerIsIncoming(incoming Operation, existing *Entry) bool {
	existingLamport := existing.VectorClock[existing.ModifiedBy]
	incomingLamport := incoming.VectorClock[incoming.NodeID]
	if incomingLamport != existingLamport {
		return incomingLamport > existingLamport
	}
	return incoming.NodeID < existing.ModifiedBy
}

// ChangesSince returns every logged operation whose vector clock is not
// strictly before vc (spec.md §4.3).
func (r *Replica) ChangesSince(vc clock.VectorClock) []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Operation
	for _, op := range r.log.ops {
		rel := clock.Compare(vc, op.VectorClock)
		if rel == clock.Before || rel == clock.Concurrent {
			out = append(out, op)
		}
	}
	return out
}

// Snapshot returns a deep copy of the map, log, and vector clock.
func (r *Replica) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data := make(map[string]Entry, len(r.data))
	for k, v := range r.data {
		data[k] = Entry{
			Value:        append([]byte(nil), v.Value...),
			VectorClock:  v.VectorClock.Clone(),
			Tombstone:    v.Tombstone,
			LastModified: v.LastModified,
			ModifiedBy:   v.ModifiedBy,
		}
	}
	return Snapshot{
		Data:        data,
		Log:         r.log.clone(),
		VectorClock: r.clock.CurrentVectorClock(),
	}
}

// DroppedInvalidCount reports how many merge candidates failed hash
// verification, for the IntegrityFailure counter in spec.md §7.
func (r *Replica) DroppedInvalidCount() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.droppedInvalid
}
