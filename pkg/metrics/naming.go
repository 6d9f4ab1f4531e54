package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NamingMetrics provides observability for naming server operations.
//
// This interface is optional - if not provided, operations proceed without
// metrics collection (zero overhead).
type NamingMetrics interface {
	// RecordOperation records a completed Service or Registration operation
	// with its name, duration, and outcome.
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordLockWait records the time a lock request spent blocked before
	// it was granted, by mode ("shared" or "exclusive").
	RecordLockWait(mode string, duration time.Duration)

	// RecordReplication records the outcome of one background replica-grow
	// attempt.
	RecordReplication(err error)

	// RecordInvalidation records one write-triggered replica invalidation
	// (the number of stale copies commanded to delete).
	RecordInvalidation(staleReplicas int)

	// SetRegisteredServers updates the count of registered storage servers.
	SetRegisteredServers(count int)
}

// namingMetrics is the Prometheus implementation of NamingMetrics.
type namingMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	lockWaitDuration  *prometheus.HistogramVec
	replicationsTotal *prometheus.CounterVec
	invalidatedTotal  prometheus.Counter
	registeredServers prometheus.Gauge
}

// NewNamingMetrics creates a new Prometheus-backed NamingMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewNamingMetrics() NamingMetrics {
	if !IsEnabled() {
		return &noopNamingMetrics{}
	}

	reg := GetRegistry()

	return &namingMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dfs_naming_operations_total",
				Help: "Total number of naming operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dfs_naming_operation_duration_seconds",
				Help:    "Duration of naming operations in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),
		lockWaitDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dfs_naming_lock_wait_seconds",
				Help:    "Time lock requests spent blocked before being granted",
				Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
			},
			[]string{"mode"},
		),
		replicationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dfs_naming_replications_total",
				Help: "Background replica-grow attempts by status",
			},
			[]string{"status"},
		),
		invalidatedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dfs_naming_replicas_invalidated_total",
				Help: "Stale replicas invalidated by exclusive lock acquisitions",
			},
		),
		registeredServers: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dfs_naming_registered_storage_servers",
				Help: "Number of registered storage servers",
			},
		),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *namingMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *namingMetrics) RecordLockWait(mode string, duration time.Duration) {
	m.lockWaitDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (m *namingMetrics) RecordReplication(err error) {
	m.replicationsTotal.WithLabelValues(statusLabel(err)).Inc()
}

func (m *namingMetrics) RecordInvalidation(staleReplicas int) {
	m.invalidatedTotal.Add(float64(staleReplicas))
}

func (m *namingMetrics) SetRegisteredServers(count int) {
	m.registeredServers.Set(float64(count))
}

// noopNamingMetrics is used when metrics are disabled.
type noopNamingMetrics struct{}

func (*noopNamingMetrics) RecordOperation(string, time.Duration, error) {}
func (*noopNamingMetrics) RecordLockWait(string, time.Duration)         {}
func (*noopNamingMetrics) RecordReplication(error)                      {}
func (*noopNamingMetrics) RecordInvalidation(int)                       {}
func (*noopNamingMetrics) SetRegisteredServers(int)                     {}
