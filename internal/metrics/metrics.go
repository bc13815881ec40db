// Package metrics exposes the C4/C5/C9 statistics the collaborator HTTP
// surface scrapes (spec.md §6) as Prometheus gauges.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the node's exported gauges.
type Registry struct {
	reg *prometheus.Registry

	CacheSize        prometheus.Gauge
	CacheHitRate     prometheus.Gauge
	CacheEvictions   prometheus.Counter
	StorageLocalUsed prometheus.Gauge
	SyncConflicts    prometheus.Gauge
	PushConnections  prometheus.Gauge
}

// New constructs a Registry with every gauge registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodecore_cache_size", Help: "Total entries across all cache tiers.",
		}),
		CacheHitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodecore_cache_hit_rate", Help: "Cache hit rate since last reset.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nodecore_cache_evictions_total", Help: "Entries demoted from L2 into L3.",
		}),
		StorageLocalUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodecore_storage_local_used_bytes", Help: "Bytes used across all storage tiers.",
		}),
		SyncConflicts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodecore_sync_conflicts_total", Help: "CRDT merge conflicts detected by the sync engine.",
		}),
		PushConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodecore_push_connections", Help: "Currently connected push subscribers.",
		}),
	}
	reg.MustRegister(r.CacheSize, r.CacheHitRate, r.CacheEvictions, r.StorageLocalUsed, r.SyncConflicts, r.PushConnections)
	return r
}

// Handler serves the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
