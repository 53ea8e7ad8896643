package failover

// Directive is what the orchestrator does after a failed attempt. One
// row per outcome, declared in a single table so the retry behavior can
// be read (and reviewed) in one place instead of reverse-engineered from
// branch logic.
type Directive struct {
	// RevokeCredential marks the credential blocked before moving on
	RevokeCredential bool

	// MarkQuotaExhausted records the credential's quota as drained and
	// excludes it from the rest of this request
	MarkQuotaExhausted bool

	// NextCredential abandons the current credential immediately instead
	// of trying more routes with it
	NextCredential bool

	// RotateRoute tries the next egress route with the same credential
	RotateRoute bool
}

var policy = map[Outcome]Directive{
	// A banned credential is dead on every route.
	OutcomeBanned: {RevokeCredential: true, NextCredential: true},

	// Drained quota follows the credential, not the route.
	OutcomeQuotaExhausted: {MarkQuotaExhausted: true, NextCredential: true},

	// Transport trouble points at the route.
	OutcomeTransient: {RotateRoute: true},

	// An empty stream is most often a broken route as well.
	OutcomeNoEvents: {RotateRoute: true},

	// Other upstream errors: try the remaining routes, then give the
	// next credential a chance.
	OutcomeUpstreamError: {RotateRoute: true},
}

// directiveFor returns the policy row for an outcome. Unknown outcomes
// rotate the route, the least destructive move.
func directiveFor(o Outcome) Directive {
	if d, ok := policy[o]; ok {
		return d
	}
	return Directive{RotateRoute: true}
}
