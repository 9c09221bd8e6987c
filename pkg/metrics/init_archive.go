package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initArchiveMetrics() {
	r.ArchiveTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_archive_total",
			Help: "Total number of SST files successfully archived before deletion",
		},
	)

	r.ArchiveFailureTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_archive_failure_total",
			Help: "Total number of SST archive attempts that failed",
		},
	)
}
