package bridge

import (
	"fmt"
	"time"
)

// StallError reports a stream that produced nothing within the heartbeat
// window.
type StallError struct {
	// Window is the heartbeat timeout that elapsed
	Window time.Duration
}

// Error implements the error interface.
func (e *StallError) Error() string {
	return fmt.Sprintf("stream stalled: no frame within %s", e.Window)
}

// ProtocolError reports a well-formed upstream HTTP response that the
// exchange could not use.
type ProtocolError struct {
	// StatusCode is the upstream HTTP status
	StatusCode int

	// Body is the response body, truncated for logging
	Body string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// StreamError reports a failure after events were already delivered.
// Delivered output is never retracted, so this is terminal in-band: the
// caller should emit an error terminator rather than retry.
type StreamError struct {
	// Delivered is how many events reached the handler before the failure
	Delivered int

	// Cause is the underlying failure
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return fmt.Sprintf("stream failed after %d events: %v", e.Delivered, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}
