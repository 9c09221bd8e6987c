package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initWALMetrics() {
	r.WALWritesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_wal_writes_total",
			Help: "Total number of WAL record batches written",
		},
	)

	r.WALFsyncsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_wal_fsyncs_total",
			Help: "Total number of WAL fsync calls",
		},
	)

	r.WALBytesWritten = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_wal_bytes_written_total",
			Help: "Total bytes written to WAL segment files",
		},
	)

	r.WALSegments = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "duskdb_wal_segments",
			Help: "Current number of WAL segment files on disk",
		},
	)
}
