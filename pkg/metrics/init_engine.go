package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEngineMetrics() {
	r.PutTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_engine_put_total",
			Help: "Total number of Put calls accepted by the engine",
		},
	)

	r.GetTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_engine_get_total",
			Help: "Total number of Get calls served by the engine",
		},
	)

	r.RemoveTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_engine_remove_total",
			Help: "Total number of Remove (tombstone) calls accepted by the engine",
		},
	)

	r.FlushTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_engine_flush_total",
			Help: "Total number of memtable flushes to a new L0 SST",
		},
	)
}
