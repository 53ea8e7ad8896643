// Package middleware provides the HTTP middleware chain for the gateway
// server: panic recovery, request ID assignment, structured request
// logging, CORS, and optional bearer API key authentication.
//
// The chain is assembled outermost-first in pkg/server:
//
//	handler = Recovery(RequestID(Logging(CORS(cfg)(Auth(key, exempt...)(mux)))))
//
// There is no per-request timeout middleware: the chat completion path
// streams server-sent events for the lifetime of an agent turn, and
// upstream stall detection in pkg/bridge already bounds a silent
// connection.
package middleware
