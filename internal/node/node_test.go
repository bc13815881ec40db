package node

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/synnergy-collab/nodecore/internal/config"
	"github.com/synnergy-collab/nodecore/internal/secrand"
	"github.com/synnergy-collab/nodecore/internal/storage"
	"github.com/synnergy-collab/nodecore/internal/timesource"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{NodeID: "test-node"}
	cfg.Storage.DBPath = dir
	cfg.Storage.CacheSize = 64
	cfg.CRDT.MaxOperations = 1000
	cfg.CRDT.TombstoneLifetime = time.Hour
	cfg.CRDT.GarbageCollectionInterval = time.Minute
	cfg.Monitoring.UpdateInterval = 50 * time.Millisecond
	cfg.P2P.MaxPeers = 8

	n, err := New(cfg, false, timesource.System{}, secrand.System{})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return n
}

func TestNodeStartStop(t *testing.T) {
	n := newTestNode(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	n.Stop()
}

func TestNodeMuxServesMetrics(t *testing.T) {
	n := newTestNode(t)
	srv := httptest.NewServer(n.Mux())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestNodeSetsUpReplicaAndStorage(t *testing.T) {
	n := newTestNode(t)
	op, err := n.Replica.Set("k", []byte("v"))
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if op.Key != "k" {
		t.Fatalf("expected key 'k', got %q", op.Key)
	}

	if _, err := n.Storage.Put("k", []byte("v"), storage.PutOptions{}); err != nil {
		t.Fatalf("storage put: %v", err)
	}
}
