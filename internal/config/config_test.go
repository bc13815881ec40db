package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/synnergy-collab/nodecore/internal/secrand"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("", secrand.System{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.P2P.MaxPeers != 64 {
		t.Fatalf("expected default maxPeers 64, got %d", cfg.P2P.MaxPeers)
	}
	if cfg.P2P.HeartbeatInterval != 10*time.Second {
		t.Fatalf("expected default heartbeat 10s, got %v", cfg.P2P.HeartbeatInterval)
	}
}

func TestLoadAutoAssignsNodeID(t *testing.T) {
	cfg, err := Load("", secrand.System{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.NodeID) != 64 {
		t.Fatalf("expected 64-character hex node id, got %q (%d chars)", cfg.NodeID, len(cfg.NodeID))
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "nodeId: \"deadbeef\"\np2p:\n  maxPeers: 16\nstorage:\n  dbPath: /tmp/custom\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, secrand.System{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NodeID != "deadbeef" {
		t.Fatalf("expected configured nodeId, got %q", cfg.NodeID)
	}
	if cfg.P2P.MaxPeers != 16 {
		t.Fatalf("expected overridden maxPeers 16, got %d", cfg.P2P.MaxPeers)
	}
	if cfg.Storage.DBPath != "/tmp/custom" {
		t.Fatalf("expected overridden dbPath, got %q", cfg.Storage.DBPath)
	}
}
