package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCacheMetrics() {
	r.CacheRequestsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_block_cache_requests_total",
			Help: "Total number of block cache lookups",
		},
	)

	r.CacheHitsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_block_cache_hits_total",
			Help: "Total number of block cache hits",
		},
	)

	r.CacheSize = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "duskdb_block_cache_size",
			Help: "Current number of blocks resident in the cache",
		},
	)
}

// RecordCacheLookup updates cache request/hit counters for one lookup.
func (r *Registry) RecordCacheLookup(hit bool) {
	r.CacheRequestsTotal.Inc()
	if hit {
		r.CacheHitsTotal.Inc()
	}
}
