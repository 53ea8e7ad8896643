// Charon is an OpenAI-compatible gateway over a proprietary binary-framed
// agent protocol.
//
// It fronts a leasable credential pool and an upstream agent service,
// providing:
//   - POST /v1/chat/completions, streaming and unary
//   - Credential leasing with SQLite-backed persistence
//   - Retry and failover across egress routes and credentials
//   - A pool management API for external credential consumers
//
// Usage:
//
//	# Start the gateway with default configuration
//	charon run
//
//	# Start with a custom configuration file
//	charon run --config /path/to/config.yaml
//
//	# Validate configuration without starting
//	charon validate
//
//	# Manage the credential pool
//	charon accounts list
//	charon accounts add --email user@example.com --access-token ...
//
//	# Show version information
//	charon version
package main

func main() {
	Execute()
}
