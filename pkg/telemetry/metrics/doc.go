// Package metrics provides Prometheus metrics for the Charon gateway.
//
// # Overview
//
// Two metric groups cover the gateway:
//
//   - Exchange metrics: exchange count and duration by model and
//     outcome, decoded upstream events by kind, credential rotations
//     by reason, and mid-stream interruptions.
//   - Pool metrics: credential counts by status, allocation attempts
//     by result, and allocation latency.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	collector.RecordExchange("auto", metrics.OutcomeSuccess, elapsed)
//	collector.RecordRotation(metrics.RotationQuota)
//	collector.SetCredentialCount(metrics.StatusActive, 12)
//
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// When metrics are disabled in configuration, every Record* method is
// a no-op so call sites need no guards.
package metrics
