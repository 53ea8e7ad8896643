package failover

import "fmt"

// NoCredentialsError reports that the pool had nothing to lease. This is
// terminal: retrying cannot conjure credentials.
type NoCredentialsError struct {
	// Cause is the pool's exhaustion error
	Cause error
}

// Error implements the error interface.
func (e *NoCredentialsError) Error() string {
	return fmt.Sprintf("no credentials available: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *NoCredentialsError) Unwrap() error {
	return e.Cause
}

// ExhaustedError reports that every credential and route attempt failed.
type ExhaustedError struct {
	// CredentialAttempts is how many credentials were tried
	CredentialAttempts int

	// LastErr is the final attempt's error
	LastErr error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d credential attempts failed: %v", e.CredentialAttempts, e.LastErr)
}

// Unwrap returns the underlying error for error chain support.
func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// NoEventsError reports a stream that completed without one decodable
// frame, after all retries.
type NoEventsError struct {
	// Route names the egress route of the final attempt
	Route string
}

// Error implements the error interface.
func (e *NoEventsError) Error() string {
	return fmt.Sprintf("upstream stream produced no events (route %s)", e.Route)
}
