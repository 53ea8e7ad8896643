package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Exchange outcome label values.
const (
	OutcomeSuccess       = "success"
	OutcomeNoCredentials = "no_credentials"
	OutcomeExhausted     = "exhausted"
	OutcomeNoEvents      = "no_events"
	OutcomeError         = "error"
)

// Credential rotation reason label values.
const (
	RotationBan      = "ban"
	RotationQuota    = "quota"
	RotationUpstream = "upstream"
)

// ExchangeMetrics tracks the gateway request path.
//
// Metrics:
//   - charon_exchanges_total: completed exchanges by model and outcome
//   - charon_exchange_duration_seconds: exchange duration histogram
//   - charon_upstream_events_total: decoded upstream events by kind
//   - charon_credential_rotations_total: rotations by reason
//   - charon_stream_interruptions_total: streams that died after first event
type ExchangeMetrics struct {
	exchangesTotal     *prometheus.CounterVec
	exchangeDuration   *prometheus.HistogramVec
	eventsTotal        *prometheus.CounterVec
	rotationsTotal     *prometheus.CounterVec
	interruptionsTotal prometheus.Counter
}

// NewExchangeMetrics creates and registers exchange metrics.
func NewExchangeMetrics(namespace string, registry *prometheus.Registry) *ExchangeMetrics {
	em := &ExchangeMetrics{
		exchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exchanges_total",
				Help:      "Completed chat exchanges by model and outcome",
			},
			[]string{"model", "outcome"},
		),

		exchangeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "exchange_duration_seconds",
				Help:      "Duration of chat exchanges in seconds",
				// Agent turns run from sub-second to minutes.
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"model"},
		),

		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_events_total",
				Help:      "Decoded upstream events by kind",
			},
			[]string{"kind"},
		),

		rotationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_rotations_total",
				Help:      "Credential rotations during failover by reason",
			},
			[]string{"reason"},
		),

		interruptionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_interruptions_total",
				Help:      "Streams that failed after delivering at least one event",
			},
		),
	}

	registry.MustRegister(
		em.exchangesTotal,
		em.exchangeDuration,
		em.eventsTotal,
		em.rotationsTotal,
		em.interruptionsTotal,
	)

	return em
}

// RecordExchange records one completed exchange.
func (em *ExchangeMetrics) RecordExchange(model, outcome string, duration time.Duration) {
	em.exchangesTotal.WithLabelValues(model, outcome).Inc()
	em.exchangeDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordEvent records one decoded upstream event.
func (em *ExchangeMetrics) RecordEvent(kind string) {
	em.eventsTotal.WithLabelValues(kind).Inc()
}

// RecordRotation records one credential rotation.
func (em *ExchangeMetrics) RecordRotation(reason string) {
	em.rotationsTotal.WithLabelValues(reason).Inc()
}

// RecordInterruption records one mid-stream failure.
func (em *ExchangeMetrics) RecordInterruption() {
	em.interruptionsTotal.Inc()
}
