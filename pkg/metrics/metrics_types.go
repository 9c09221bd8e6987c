package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric the engine and its surrounding tools emit.
type Registry struct {
	// Engine operation counters.
	PutTotal    prometheus.Counter
	GetTotal    prometheus.Counter
	RemoveTotal prometheus.Counter
	FlushTotal  prometheus.Counter

	// Compaction metrics.
	CompactionsTotal   *prometheus.CounterVec
	CompactionDuration *prometheus.HistogramVec
	SSTsPerLevel       *prometheus.GaugeVec

	// Block cache metrics.
	CacheRequestsTotal prometheus.Counter
	CacheHitsTotal     prometheus.Counter
	CacheSize          prometheus.Gauge

	// Write-ahead log metrics.
	WALWritesTotal  prometheus.Counter
	WALFsyncsTotal  prometheus.Counter
	WALBytesWritten prometheus.Counter
	WALSegments     prometheus.Gauge

	// Transaction manager metrics.
	TxnBeginTotal       *prometheus.CounterVec
	TxnCommitTotal      prometheus.Counter
	TxnAbortTotal       prometheus.Counter
	TxnConflictTotal    prometheus.Counter
	NextTrancID         prometheus.Gauge
	MaxFlushedTrancID   prometheus.Gauge
	MaxFinishedTrancID  prometheus.Gauge

	// Archival metrics.
	ArchiveTotal        prometheus.Counter
	ArchiveFailureTotal prometheus.Counter

	// System metrics.
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with every metric initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{registry: reg}

	r.initEngineMetrics()
	r.initCompactionMetrics()
	r.initCacheMetrics()
	r.initWALMetrics()
	r.initTxnMetrics()
	r.initArchiveMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
