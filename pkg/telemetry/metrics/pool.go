package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Allocation result label values.
const (
	AllocationOK        = "ok"
	AllocationExhausted = "exhausted"
	AllocationRevoked   = "revoked"
)

// Credential status label values for the pool gauge.
const (
	StatusActive    = "active"
	StatusAvailable = "available"
	StatusLeased    = "leased"
	StatusBlocked   = "blocked"
)

// PoolMetrics tracks credential pool state.
//
// Metrics:
//   - charon_pool_credentials: credential count by status
//   - charon_pool_allocations_total: allocation attempts by result
//   - charon_pool_allocation_duration_seconds: allocation latency histogram
type PoolMetrics struct {
	credentials        *prometheus.GaugeVec
	allocationsTotal   *prometheus.CounterVec
	allocationDuration prometheus.Histogram
}

// NewPoolMetrics creates and registers pool metrics.
func NewPoolMetrics(namespace string, registry *prometheus.Registry) *PoolMetrics {
	pm := &PoolMetrics{
		credentials: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_credentials",
				Help:      "Credentials in the pool by status",
			},
			[]string{"status"},
		),

		allocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pool_allocations_total",
				Help:      "Credential allocation attempts by result",
			},
			[]string{"result"},
		),

		allocationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pool_allocation_duration_seconds",
				Help:      "Credential allocation latency in seconds",
				// Allocation hits SQLite and sometimes a token refresh.
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		),
	}

	registry.MustRegister(
		pm.credentials,
		pm.allocationsTotal,
		pm.allocationDuration,
	)

	return pm
}

// SetCredentialCount sets the gauge for one credential status.
func (pm *PoolMetrics) SetCredentialCount(status string, count int) {
	pm.credentials.WithLabelValues(status).Set(float64(count))
}

// RecordAllocation records one allocation attempt.
func (pm *PoolMetrics) RecordAllocation(result string, duration time.Duration) {
	pm.allocationsTotal.WithLabelValues(result).Inc()
	pm.allocationDuration.Observe(duration.Seconds())
}
