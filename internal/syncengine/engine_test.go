package syncengine

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-collab/nodecore/internal/clock"
	"github.com/synnergy-collab/nodecore/internal/crdt"
	"github.com/synnergy-collab/nodecore/internal/timesource"
)

func newTestEngine(t *testing.T, nodeID string, now *timesource.Fixed) (*Engine, *crdt.Replica) {
	t.Helper()
	c := clock.New(nodeID)
	replica := crdt.New(c, crdt.Config{MaxOperations: 1000, TombstoneLifetime: 60000}, now, nil)
	return New(replica, logrus.NewEntry(logrus.New())), replica
}

func TestTrackChangeMovesToPending(t *testing.T) {
	now := &timesource.Fixed{Millis: 1000}
	e, replica := newTestEngine(t, "node-a", now)

	op, err := replica.Set("k", []byte("v"))
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	e.TrackChange(op)
	if e.State() != StatePending {
		t.Fatalf("expected PENDING, got %s", e.State())
	}
}

func TestBroadcastChangesDrainsAndReturnsToOK(t *testing.T) {
	now := &timesource.Fixed{Millis: 1000}
	e, replica := newTestEngine(t, "node-a", now)
	op, _ := replica.Set("k", []byte("v"))
	e.TrackChange(op)

	drained := e.BroadcastChanges()
	if len(drained) != 1 {
		t.Fatalf("expected 1 drained op, got %d", len(drained))
	}
	if e.State() != StateOK {
		t.Fatalf("expected OK after drain, got %s", e.State())
	}
	if e.PendingLen() != 0 {
		t.Fatal("expected empty pending queue after broadcast")
	}
}

func TestApplyRemoteChangesDetectsConflict(t *testing.T) {
	now := &timesource.Fixed{Millis: 1000}
	eA, replA := newTestEngine(t, "node-a", now)
	_, replB := newTestEngine(t, "node-b", now)

	opA, _ := replA.Set("k", []byte("A"))
	opB, _ := replB.Set("k", []byte("B"))

	applied := eA.ApplyRemoteChanges([]crdt.Operation{opB}, "node-b")
	if applied != 1 {
		t.Fatalf("expected 1 applied op, got %d", applied)
	}
	if eA.State() != StateConflict {
		t.Fatalf("expected CONFLICT after concurrent merge, got %s", eA.State())
	}
	if eA.ConflictCount() != 1 {
		t.Fatalf("expected 1 conflict recorded, got %d", eA.ConflictCount())
	}
	_ = opA
}

func TestApplyRemoteChangesNoConflictForNewKey(t *testing.T) {
	now := &timesource.Fixed{Millis: 1000}
	eA, _ := newTestEngine(t, "node-a", now)
	_, replB := newTestEngine(t, "node-b", now)

	opB, _ := replB.Set("new-key", []byte("v"))
	eA.ApplyRemoteChanges([]crdt.Operation{opB}, "node-b")
	if eA.State() == StateConflict {
		t.Fatal("expected no conflict when merging into an empty key")
	}
}

func TestForceFullSyncReturnsEntireLog(t *testing.T) {
	now := &timesource.Fixed{Millis: 1000}
	e, replica := newTestEngine(t, "node-a", now)
	replica.Set("k1", []byte("v1"))
	replica.Set("k2", []byte("v2"))

	ops := e.ForceFullSync()
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
}

func TestGossipFanoutSqrtN(t *testing.T) {
	peers := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	fanout := GossipFanout(peers, nil)
	if len(fanout) != 3 {
		t.Fatalf("expected sqrt(9)=3 peers, got %d", len(fanout))
	}
}

func TestGossipFanoutMinimumOne(t *testing.T) {
	peers := []string{"a"}
	fanout := GossipFanout(peers, nil)
	if len(fanout) != 1 {
		t.Fatalf("expected 1 peer, got %d", len(fanout))
	}
}
