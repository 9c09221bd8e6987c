package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCompactionMetrics() {
	r.CompactionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "duskdb_compactions_total",
			Help: "Total number of level compactions performed",
		},
		[]string{"source_level"},
	)

	r.CompactionDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duskdb_compaction_duration_seconds",
			Help:    "Compaction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"source_level"},
	)

	r.SSTsPerLevel = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "duskdb_ssts_per_level",
			Help: "Current number of SSTs resident in each level",
		},
		[]string{"level"},
	)
}
