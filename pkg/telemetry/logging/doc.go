// Package logging provides structured logging with credential redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON and text formats
//   - Automatic redaction of tokens and account emails
//   - Context-aware logging with request and lease identifiers
//   - Configurable log levels (debug, info, warn, error)
//
// # Usage
//
//	// Create a logger and make it the process default
//	logger, err := logging.Setup(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Redact: true,
//	})
//
//	// Log structured data
//	logger.Info("exchange finished",
//	    "request_id", "req-123",
//	    "authorization", "Bearer eyJhbGciOi...",  // redacted
//	    "duration_ms", 1234,
//	)
//
//	// Create context-aware logger
//	ctx := logging.WithRequestID(ctx, "req-123")
//	logger.WithContext(ctx).Info("processing")  // includes request_id
//
// # Redaction
//
// When Redact is enabled, credential material is masked in the message
// and in string attribute values before a record is written:
//
//   - Authorization headers: Bearer eyJ... -> Bearer ***
//   - Bare JWTs: eyJx.eyJy.sig -> ***
//   - refresh_token and api_key values -> ***
//   - Account emails: user@example.com -> ***@example.com
//
// Redaction applies through slog.Default as well, since Setup installs
// the redacting handler as the process default.
package logging
