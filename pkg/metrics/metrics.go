package metrics

import (
	"strconv"
	"time"
)

// RecordCompaction records one level compaction's duration, tagged by
// the source level that triggered it.
func (r *Registry) RecordCompaction(sourceLevel int, duration time.Duration) {
	label := levelLabel(sourceLevel)
	r.CompactionsTotal.WithLabelValues(label).Inc()
	r.CompactionDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// SetSSTsAtLevel reports the current SST count for one level.
func (r *Registry) SetSSTsAtLevel(level, count int) {
	r.SSTsPerLevel.WithLabelValues(levelLabel(level)).Set(float64(count))
}

// RecordTxnBegin counts a transaction begin by isolation level name.
func (r *Registry) RecordTxnBegin(isolation string) {
	r.TxnBeginTotal.WithLabelValues(isolation).Inc()
}

// UpdateWatermarks reports the transaction manager's three persisted
// watermarks.
func (r *Registry) UpdateWatermarks(next, maxFlushed, maxFinished uint64) {
	r.NextTrancID.Set(float64(next))
	r.MaxFlushedTrancID.Set(float64(maxFlushed))
	r.MaxFinishedTrancID.Set(float64(maxFinished))
}

func levelLabel(level int) string {
	return strconv.Itoa(level)
}
