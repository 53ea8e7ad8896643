package metrics

import (
	"time"

	"heliox-hq/charon/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the Prometheus registry and the metric groups for the
// gateway: exchange metrics for the request path and pool metrics for
// credential bookkeeping.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	exchange *ExchangeMetrics
	pool     *PoolMetrics
}

// NewCollector creates a collector registered against the given registry.
// If registry is nil, a fresh registry is used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "charon"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}
	c.exchange = NewExchangeMetrics(namespace, registry)
	c.pool = NewPoolMetrics(namespace, registry)

	return c
}

// RecordExchange records a completed chat exchange.
func (c *Collector) RecordExchange(model, outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.exchange.RecordExchange(model, outcome, duration)
}

// RecordEvent records one decoded upstream event by kind.
func (c *Collector) RecordEvent(kind string) {
	if !c.config.Enabled {
		return
	}
	c.exchange.RecordEvent(kind)
}

// RecordRotation records a credential rotation and the reason for it.
func (c *Collector) RecordRotation(reason string) {
	if !c.config.Enabled {
		return
	}
	c.exchange.RecordRotation(reason)
}

// RecordInterruption records a stream that failed after its first event.
func (c *Collector) RecordInterruption() {
	if !c.config.Enabled {
		return
	}
	c.exchange.RecordInterruption()
}

// RecordAllocation records one pool allocation attempt and its latency.
func (c *Collector) RecordAllocation(result string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.pool.RecordAllocation(result, duration)
}

// SetCredentialCount sets the pool gauge for one credential status.
func (c *Collector) SetCredentialCount(status string, count int) {
	if !c.config.Enabled {
		return
	}
	c.pool.SetCredentialCount(status, count)
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
