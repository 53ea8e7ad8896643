package pool

import (
	"fmt"
	"time"
)

// ExhaustedError reports that no credential could be allocated.
type ExhaustedError struct {
	// Active is the number of active credentials in the pool
	Active int

	// Locked is how many of them were held by other leases
	Locked int

	// Excluded is how many the caller excluded
	Excluded int
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("credential pool exhausted (active=%d locked=%d excluded=%d)",
		e.Active, e.Locked, e.Excluded)
}

// LockTimeoutError reports that the allocation critical section could not
// be entered in time.
type LockTimeoutError struct {
	// Timeout is the configured bound
	Timeout time.Duration
}

// Error implements the error interface.
func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("pool lock not acquired within %s", e.Timeout)
}

// RevokedError reports a credential that can no longer authenticate and
// has no path back: its access token is expired and it carries no refresh
// token.
type RevokedError struct {
	// Email identifies the credential
	Email string

	// Reason describes why the credential is unusable
	Reason string
}

// Error implements the error interface.
func (e *RevokedError) Error() string {
	return fmt.Sprintf("credential %q revoked: %s", e.Email, e.Reason)
}

// RefreshFailedError reports a token refresh that the identity endpoint
// rejected or that could not complete.
type RefreshFailedError struct {
	// Email identifies the credential
	Email string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *RefreshFailedError) Error() string {
	return fmt.Sprintf("token refresh for %q failed: %v", e.Email, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *RefreshFailedError) Unwrap() error {
	return e.Cause
}
