// Package health provides liveness and readiness probes for the
// gateway.
//
// Liveness answers as long as the process runs. Readiness runs every
// registered component probe (credential store, upstream reachability)
// concurrently with a per-check timeout and degrades to 503 when any
// probe fails.
//
// Usage:
//
//	checker := health.New(5 * time.Second)
//	checker.Register("pool", func(ctx context.Context) error {
//		_, err := store.CountByStatus(ctx)
//		return err
//	})
//	mux.HandleFunc("/healthz", checker.LivenessHandler())
//	mux.HandleFunc("/readyz", checker.ReadinessHandler())
package health
