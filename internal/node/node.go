// Package node wires the dependency graph of every component in
// spec.md §2's dependency order (C1 clock, C2 crypto, C3 CRDT, C4 storage,
// C5 cache, C6 DHT, C7 transport, C8 signaling, C9 sync, C10 push) into a
// single runnable node with a construct-then-Start/Stop lifecycle.
package node

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/synnergy-collab/nodecore/internal/cache"
	"github.com/synnergy-collab/nodecore/internal/clock"
	"github.com/synnergy-collab/nodecore/internal/config"
	"github.com/synnergy-collab/nodecore/internal/crdt"
	"github.com/synnergy-collab/nodecore/internal/crypto"
	"github.com/synnergy-collab/nodecore/internal/dht"
	"github.com/synnergy-collab/nodecore/internal/logging"
	"github.com/synnergy-collab/nodecore/internal/metrics"
	"github.com/synnergy-collab/nodecore/internal/nodeerr"
	"github.com/synnergy-collab/nodecore/internal/push"
	"github.com/synnergy-collab/nodecore/internal/secrand"
	"github.com/synnergy-collab/nodecore/internal/signaling"
	"github.com/synnergy-collab/nodecore/internal/storage"
	"github.com/synnergy-collab/nodecore/internal/syncengine"
	"github.com/synnergy-collab/nodecore/internal/timesource"
	"github.com/synnergy-collab/nodecore/internal/transport"
)

// Node is the fully wired collaboration-backend core.
type Node struct {
	Config *config.Config

	Clock     *clock.Clock
	Crypto    *crypto.Provider
	Replica   *crdt.Replica
	Storage   *storage.Manager
	Cache     *cache.Cache
	DHT       *dht.Table
	Transport *transport.Transport
	Signaling *signaling.Relay
	Sync      *syncengine.Engine
	Push      *push.Server
	Metrics   *metrics.Registry

	log     *logging.Logger
	cancels []func()
}

// New wires every component in dependency order (spec.md §2). pqNative
// selects the Kyber768/Dilithium3 provider when true, the non-PQ-safe
// fallback otherwise.
func New(cfg *config.Config, pqNative bool, now timesource.Source, rnd secrand.Source) (*Node, error) {
	log := logging.New("info")

	c := clock.New(cfg.NodeID)

	var provider *crypto.Provider
	if pqNative {
		provider = crypto.NewNative()
	} else {
		provider = crypto.NewFallback()
	}

	replica := crdt.New(c, crdt.Config{
		MaxOperations:     cfg.CRDT.MaxOperations,
		TombstoneLifetime: cfg.CRDT.TombstoneLifetime.Milliseconds(),
	}, now, log)

	store, err := storage.New(storage.Config{
		DBPath:    cfg.Storage.DBPath,
		CacheSize: cfg.Storage.CacheSize,
		MaxLocal:  cfg.Storage.MaxLocalSize,
	}, now, logrus.NewEntry(logrus.New()), zap.NewNop().Sugar())
	if err != nil {
		return nil, err
	}

	tieredCache, err := cache.New(cache.Sizes{L1: 128, L2: 512}, now, logrus.NewEntry(logrus.New()))
	if err != nil {
		return nil, err
	}

	table := dht.New(cfg.NodeID, now, logrus.NewEntry(logrus.New()))

	tr := transport.New(cfg.NodeID, transport.Config{
		MaxPeers:             cfg.P2P.MaxPeers,
		HeartbeatInterval:    cfg.P2P.HeartbeatInterval,
		ReconnectBaseDelay:   cfg.P2P.ReconnectDelay,
		MaxReconnectAttempts: cfg.P2P.MaxReconnectAttempts,
	}, replica, now, logrus.NewEntry(logrus.New()))

	relay := signaling.New(table, rnd, now, logrus.NewEntry(logrus.New()))
	engine := syncengine.New(replica, logrus.NewEntry(logrus.New()))
	pushServer := push.New(now, logrus.NewEntry(logrus.New()))

	return &Node{
		Config:    cfg,
		Clock:     c,
		Crypto:    provider,
		Replica:   replica,
		Storage:   store,
		Cache:     tieredCache,
		DHT:       table,
		Transport: tr,
		Signaling: relay,
		Sync:      engine,
		Push:      pushServer,
		Metrics:   metrics.New(),
		log:       log,
	}, nil
}

// Start launches every component's background task under ctx, including a
// periodic refresh of the exported Prometheus gauges from each component's
// own Stats() snapshot.
func (n *Node) Start(ctx context.Context) {
	n.cancels = append(n.cancels,
		n.Storage.RunExpirySweep(ctx, n.Config.CRDT.GarbageCollectionInterval),
		n.Cache.RunTTLSweep(ctx, n.Config.Monitoring.UpdateInterval),
		n.Signaling.RunKeepalive(ctx, n.Config.Monitoring.UpdateInterval),
		n.Sync.RunTick(ctx, 5*time.Second),
		n.Transport.RunHeartbeat(ctx, n.dialPeer),
		n.Replica.RunGC(ctx, n.Config.CRDT.GarbageCollectionInterval),
		n.runMetricsRefresh(ctx, n.Config.Monitoring.UpdateInterval),
	)
	n.log.Info("node started", map[string]any{"nodeId": n.Config.NodeID})
}

// dialPeer opens a TCP connection to a peer's last-known DHT address and
// hands it to the transport's handshake path. Passed to RunHeartbeat as the
// reconnect callback so dropped peers are redialed on the backoff schedule.
func (n *Node) dialPeer(peerID string) error {
	known, ok := n.DHT.LookupNode(peerID)
	if !ok {
		return nodeerr.New(nodeerr.NotFound, "no known address for peer")
	}
	conn, err := net.Dial("tcp", known.Address)
	if err != nil {
		return nodeerr.Wrap(err, nodeerr.IoError, "dial peer")
	}
	return n.Transport.Dial(peerID, conn)
}

func (n *Node) runMetricsRefresh(ctx context.Context, interval time.Duration) (cancel func()) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ctx, cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.refreshMetrics()
			}
		}
	}()
	return cancel
}

func (n *Node) refreshMetrics() {
	cacheStats := n.Cache.Stats()
	n.Metrics.CacheSize.Set(float64(cacheStats.Size))
	n.Metrics.CacheHitRate.Set(cacheStats.HitRate)

	storageStats := n.Storage.Stats(n.Config.Storage.MaxLocalSize)
	n.Metrics.StorageLocalUsed.Set(float64(storageStats.LocalUsed))

	n.Metrics.SyncConflicts.Set(float64(n.Sync.ConflictCount()))
}

// Stop cancels every background task started by Start. Cancellation fans
// out across an errgroup (golang.org/x/sync/errgroup), one goroutine per
// task, so one task's cancel hook can't block the others.
func (n *Node) Stop() {
	var g errgroup.Group
	for _, cancel := range n.cancels {
		cancel := cancel
		g.Go(func() error {
			cancel()
			return nil
		})
	}
	_ = g.Wait()
	n.Push.Close()
	n.log.Info("node stopped", nil)
}

// Mux returns the HTTP handler exposing the signaling, push, and metrics
// endpoints (spec.md §4.8, §4.10, §6).
func (n *Node) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/p2p-signaling", n.Signaling)
	mux.Handle("/push", n.Push)
	mux.Handle("/metrics", n.Metrics.Handler())
	return mux
}
