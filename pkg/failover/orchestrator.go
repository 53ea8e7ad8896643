package failover

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"heliox-hq/charon/pkg/egress"
	"heliox-hq/charon/pkg/pool"
)

// Attempt performs one upstream exchange with the given credential over
// the given route. A failure should be returned as *AttemptError so the
// policy table can act on its outcome; untyped errors are classified as
// transport failures.
type Attempt func(ctx context.Context, cred *pool.Credential, client *http.Client, route egress.Route) error

// Config tunes the retry ladder.
type Config struct {
	// CredentialAttempts is the outer loop bound. Default: 5.
	CredentialAttempts int

	// RouteAttempts is the inner loop bound per credential. Default: 3.
	RouteAttempts int

	// InitialBackoff is the first delay between route attempts.
	// Default: 200ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between route attempts. Default: 3s.
	MaxBackoff time.Duration

	// OnRotation, when set, observes the outcome of every failed
	// credential attempt before the ladder moves to the next one.
	// Metrics hang off this hook.
	OnRotation func(Outcome)
}

func (c *Config) applyDefaults() {
	if c.CredentialAttempts <= 0 {
		c.CredentialAttempts = 5
	}
	if c.RouteAttempts <= 0 {
		c.RouteAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 3 * time.Second
	}
}

// Orchestrator walks credentials and routes until an attempt succeeds.
type Orchestrator struct {
	cfg     Config
	pool    *pool.Manager
	rotator *egress.Rotator
	logger  *slog.Logger
}

// NewOrchestrator creates a retry orchestrator over the pool and rotator.
func NewOrchestrator(p *pool.Manager, rotator *egress.Rotator, cfg Config) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:     cfg,
		pool:    p,
		rotator: rotator,
		logger:  slog.Default().With("component", "failover"),
	}
}

// Do runs fn until it succeeds or the ladder is exhausted. Each
// credential attempt holds a fresh lease, released before the next
// credential is tried; route attempts share the credential and back off
// exponentially between tries.
func (o *Orchestrator) Do(ctx context.Context, fn Attempt) error {
	var (
		lastErr   error
		lastRoute string
		exclude   []string
	)

	for credAttempt := 0; credAttempt < o.cfg.CredentialAttempts; credAttempt++ {
		lease, err := o.pool.Allocate(ctx, pool.AllocateOptions{
			Exclude:      exclude,
			ForceRefresh: credAttempt > 0,
		})
		if err != nil {
			var exhausted *pool.ExhaustedError
			if errors.As(err, &exhausted) {
				if lastErr != nil {
					// Credentials existed but this request drained them.
					return &ExhaustedError{CredentialAttempts: credAttempt, LastErr: lastErr}
				}
				return &NoCredentialsError{Cause: err}
			}
			var revoked *pool.RevokedError
			if errors.As(err, &revoked) {
				// The pool retired a dead credential during allocation;
				// that consumed this attempt, not the request.
				lastErr = err
				exclude = append(exclude, revoked.Email)
				continue
			}
			return err
		}

		cred := lease.First()
		err = o.tryRoutes(ctx, fn, cred)
		o.pool.Release(lease.ID)

		if err == nil {
			return nil
		}
		lastErr = err
		lastRoute = routeOf(err)

		outcome := OutcomeOf(err)
		directive := directiveFor(outcome)
		if o.cfg.OnRotation != nil {
			o.cfg.OnRotation(outcome)
		}
		o.logger.Warn("credential attempt failed",
			"attempt", credAttempt+1,
			"email", cred.Email,
			"outcome", outcome.String(),
			"error", err,
		)

		if directive.RevokeCredential {
			if _, revErr := o.pool.MarkRevoked(ctx, cred.Email); revErr != nil {
				o.logger.Error("revocation failed", "email", cred.Email, "error", revErr)
			}
		}
		if directive.MarkQuotaExhausted {
			if qErr := o.pool.RecordQuotaExhausted(ctx, cred.Email); qErr != nil {
				o.logger.Error("quota exhaustion not recorded", "email", cred.Email, "error", qErr)
			}
			exclude = append(exclude, cred.Email)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if OutcomeOf(lastErr) == OutcomeNoEvents {
		return &NoEventsError{Route: lastRoute}
	}
	return &ExhaustedError{CredentialAttempts: o.cfg.CredentialAttempts, LastErr: lastErr}
}

// tryRoutes runs fn across egress routes with one credential. It returns
// nil on success, or the last attempt error once routes are exhausted or
// the policy says the credential itself is the problem.
func (o *Orchestrator) tryRoutes(ctx context.Context, fn Attempt, cred *pool.Credential) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.cfg.InitialBackoff
	bo.MaxInterval = o.cfg.MaxBackoff

	routeAttempts := o.cfg.RouteAttempts
	if n := o.rotator.Len(); n < routeAttempts {
		routeAttempts = n
	}

	var lastErr error
	for routeAttempt := 0; routeAttempt < routeAttempts; routeAttempt++ {
		route := o.rotator.Next()
		client := o.rotator.Client(route)

		err := fn(ctx, cred, client, route)
		if err == nil {
			return nil
		}
		lastErr = wrapRoute(err, route.Label)

		directive := directiveFor(OutcomeOf(err))
		if directive.NextCredential || !directive.RotateRoute {
			return lastErr
		}

		o.logger.Debug("rotating route",
			"route", route.Label,
			"attempt", routeAttempt+1,
			"error", err,
		)

		if routeAttempt < routeAttempts-1 {
			select {
			case <-time.After(bo.NextBackOff()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func wrapRoute(err error, route string) error {
	var attemptErr *AttemptError
	if errors.As(err, &attemptErr) {
		if attemptErr.Route == "" {
			attemptErr.Route = route
		}
		return err
	}
	return &AttemptError{Outcome: ClassifyError(err), Route: route, Cause: err}
}

func routeOf(err error) string {
	var attemptErr *AttemptError
	if errors.As(err, &attemptErr) {
		return attemptErr.Route
	}
	return "unknown"
}
