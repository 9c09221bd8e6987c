package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTxnMetrics() {
	r.TxnBeginTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "duskdb_txn_begin_total",
			Help: "Total number of transactions begun, by isolation level",
		},
		[]string{"isolation"},
	)

	r.TxnCommitTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_txn_commit_total",
			Help: "Total number of transactions committed",
		},
	)

	r.TxnAbortTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_txn_abort_total",
			Help: "Total number of transactions aborted",
		},
	)

	r.TxnConflictTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "duskdb_txn_conflict_total",
			Help: "Total number of commit-time conflicts detected",
		},
	)

	r.NextTrancID = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "duskdb_txn_next_tranc_id",
			Help: "Current value of the next_tranc_id watermark",
		},
	)

	r.MaxFlushedTrancID = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "duskdb_txn_max_flushed_tranc_id",
			Help: "Current value of the max_flushed_tranc_id watermark",
		},
	)

	r.MaxFinishedTrancID = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "duskdb_txn_max_finished_tranc_id",
			Help: "Current value of the max_finished_tranc_id watermark",
		},
	)
}
