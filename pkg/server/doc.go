// Package server exposes the gateway's HTTP surface.
//
// This package ties the core together (bridge, translator, pool) behind
// an OpenAI-compatible API and manages server lifecycle: start, graceful
// shutdown, and OS signals (SIGTERM, SIGINT).
//
// # Routes
//
//   - POST /v1/chat/completions (and /chat/completions) - chat
//     completion, streaming and unary
//   - GET /v1/models - static model catalog
//   - GET /healthz - liveness probe
//   - GET /readyz - readiness probe (component checks, when wired)
//   - POST /api/accounts/allocate - lease a credential
//   - POST /api/accounts/release - release a lease
//   - POST /api/accounts/mark_blocked - revoke by email or token prefix
//   - POST /api/accounts/refresh_credits - refresh quota snapshots
//   - GET /api/accounts/list - list credentials (status filter, paging)
//   - GET /api/status - pool snapshot
//   - GET <metrics path> - Prometheus exposition (when enabled)
//
// # Middleware chain
//
// Requests pass through, outermost first: Recovery, RequestID, Logging,
// CORS, Auth. Health and metrics probes are exempt from Auth.
//
// # Basic usage
//
//	srv := server.New(cfg, server.Deps{
//	    Pool:      poolManager,
//	    Bridge:    br,
//	    Collector: collector,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until the context is cancelled, a signal arrives, or the
// listener fails. Shutdown stops accepting connections and waits up to
// the configured shutdown timeout for in-flight exchanges.
package server
