package pool

import "time"

// Lease is an exclusive hold on one or more credentials for the duration
// of a request. Leases expire automatically; releasing an unknown or
// already-released lease is a no-op so callers can release defensively on
// every exit path.
type Lease struct {
	// ID is the opaque lease identifier (a UUID)
	ID string

	// Credentials are the held credentials, in allocation order
	Credentials []*Credential

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the lease lapsed at time now.
func (l *Lease) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// First returns the first held credential. Allocation never returns an
// empty lease, so this is safe on any lease the pool handed out.
func (l *Lease) First() *Credential {
	return l.Credentials[0]
}
