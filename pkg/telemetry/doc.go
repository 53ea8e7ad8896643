// Package telemetry provides observability for the gateway.
//
// # Components
//
//   - logging: structured logging with credential redaction
//   - metrics: Prometheus metrics collection
//   - health: liveness and readiness probes
//
// # Usage
//
//	logger, err := logging.Setup(logging.Config{
//		Level:  cfg.Telemetry.Logging.Level,
//		Format: cfg.Telemetry.Logging.Format,
//		Redact: cfg.Telemetry.Logging.Redact,
//	})
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
//	checker := health.New(0)
//	checker.Register("pool", poolProbe)
//	mux.HandleFunc("/healthz", checker.LivenessHandler())
package telemetry
