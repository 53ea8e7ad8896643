// Package failover drives the retry ladder for upstream exchanges:
// classifying each failed attempt, consulting an explicit policy table,
// and walking egress routes and pool credentials until an attempt
// succeeds or the ladder is exhausted.
package failover

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
)

// Outcome classifies one attempt result.
type Outcome int

// Attempt outcomes.
const (
	OutcomeSuccess Outcome = iota

	// OutcomeBanned is a 403 whose body names an account ban. The
	// credential is dead; revoke it and move on.
	OutcomeBanned

	// OutcomeQuotaExhausted is a 429 whose body names drained quota. The
	// credential is healthy but empty; force a different one.
	OutcomeQuotaExhausted

	// OutcomeTransient is a transport-level failure (dial, TLS, proxy,
	// stall). The route is suspect, not the credential.
	OutcomeTransient

	// OutcomeUpstreamError is any other non-2xx response.
	OutcomeUpstreamError

	// OutcomeNoEvents is a stream that closed without producing a single
	// decodable frame.
	OutcomeNoEvents
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeBanned:
		return "banned"
	case OutcomeQuotaExhausted:
		return "quota_exhausted"
	case OutcomeTransient:
		return "transient"
	case OutcomeUpstreamError:
		return "upstream_error"
	case OutcomeNoEvents:
		return "no_events"
	default:
		return "unknown"
	}
}

// Body markers the upstream uses for account bans.
var banMarkers = []string{
	"Your account has been blocked",
	"blocked from using AI features",
}

// Body markers the upstream uses for drained quota.
var quotaMarkers = []string{
	"No remaining quota",
	"No AI requests remaining",
}

// ClassifyResponse maps an upstream HTTP response to an outcome. The
// body distinguishes a ban from an ordinary 403 and drained quota from
// ordinary throttling.
func ClassifyResponse(statusCode int, body []byte) Outcome {
	text := string(body)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return OutcomeSuccess
	case statusCode == http.StatusForbidden && containsAny(text, banMarkers):
		return OutcomeBanned
	case statusCode == http.StatusTooManyRequests && containsAny(text, quotaMarkers):
		return OutcomeQuotaExhausted
	default:
		return OutcomeUpstreamError
	}
}

// ClassifyError maps a transport error to an outcome.
func ClassifyError(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return OutcomeTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return OutcomeTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return OutcomeTransient
	}

	// url.Error from a proxy or TLS failure wraps the cause; the string
	// check catches proxy handshake errors that carry no typed cause.
	msg := err.Error()
	if strings.Contains(msg, "proxy") || strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "tls:") || strings.Contains(msg, "EOF") {
		return OutcomeTransient
	}

	return OutcomeUpstreamError
}

// AttemptError carries an attempt's outcome through the error chain so
// the orchestrator can consult the policy table.
type AttemptError struct {
	// Outcome is the classified result
	Outcome Outcome

	// StatusCode is the upstream status (0 for transport failures)
	StatusCode int

	// Route names the egress route used
	Route string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *AttemptError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("attempt failed via %s (%s, status %d): %v", e.Route, e.Outcome, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("attempt failed via %s (%s): %v", e.Route, e.Outcome, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *AttemptError) Unwrap() error {
	return e.Cause
}

// OutcomeOf extracts the outcome from an attempt error chain, falling
// back to transport classification for untyped errors.
func OutcomeOf(err error) Outcome {
	var attemptErr *AttemptError
	if errors.As(err, &attemptErr) {
		return attemptErr.Outcome
	}
	return ClassifyError(err)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
