// Package storage persists the credential pool. The SQLite backend is
// the production implementation; the Store interface exists so the pool
// manager can be tested against an in-memory double.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Credential lifecycle states as stored.
const (
	StatusActive  = "active"
	StatusBlocked = "blocked"
	StatusExpired = "expired"
)

// Record is one stored credential.
type Record struct {
	Email        string
	AccessToken  string
	RefreshToken string
	Status       string

	CreatedAt time.Time
	UpdatedAt time.Time

	// LastUsed is nil until the credential serves its first request.
	LastUsed *time.Time

	// LastRefresh is nil until the access token is first refreshed.
	LastRefresh *time.Time

	UseCount int64

	Quota *QuotaSnapshot
}

// QuotaSnapshot is the last known usage state for a credential.
type QuotaSnapshot struct {
	Limit           int
	Used            int
	Unlimited       bool
	NextRefreshAt   time.Time
	RefreshInterval string
	CheckedAt       time.Time
}

// Remaining returns requests left in the window, -1 for unlimited.
func (q *QuotaSnapshot) Remaining() int {
	if q.Unlimited {
		return -1
	}
	if r := q.Limit - q.Used; r > 0 {
		return r
	}
	return 0
}

// Store is the persistence interface for credentials.
type Store interface {
	// Insert adds a credential. Inserting an existing email fails.
	Insert(ctx context.Context, rec *Record) error

	// Get returns a credential by email, or nil if absent.
	Get(ctx context.Context, email string) (*Record, error)

	// ListActive returns active credentials in least-recently-used order.
	// Never-used credentials sort first so fresh capacity drains before
	// warm credentials are reused.
	ListActive(ctx context.Context) ([]*Record, error)

	// List returns credentials filtered by status ("" for all), paged.
	List(ctx context.Context, status string, limit, offset int) ([]*Record, error)

	// UpdateStatus transitions a credential by exact email. Returns the
	// number of rows changed.
	UpdateStatus(ctx context.Context, email, status string) (int64, error)

	// UpdateStatusByTokenPrefix transitions every credential whose access
	// token starts with prefix. Returns the number of rows changed.
	UpdateStatusByTokenPrefix(ctx context.Context, prefix, status string) (int64, error)

	// UpdateTokens stores a refreshed token pair and the refresh time.
	UpdateTokens(ctx context.Context, email, accessToken, refreshToken string, refreshedAt time.Time) error

	// UpdateQuota stores a fresh usage snapshot.
	UpdateQuota(ctx context.Context, email string, quota *QuotaSnapshot) error

	// Touch records a use: sets last_used and increments use_count.
	Touch(ctx context.Context, email string, usedAt time.Time) error

	// DeleteStale removes credentials in the given status that were last
	// updated before cutoff. Returns the number of rows deleted.
	DeleteStale(ctx context.Context, status string, cutoff time.Time) (int64, error)

	// CountByStatus returns credential counts keyed by status.
	CountByStatus(ctx context.Context) (map[string]int, error)

	// Close releases the backend.
	Close() error
}

// ValidStatus reports whether s is a known credential status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusBlocked, StatusExpired:
		return true
	}
	return false
}

// NotFoundError reports an operation against a credential that does not
// exist.
type NotFoundError struct {
	// Email identifies the missing credential
	Email string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("credential %q not found", e.Email)
}

// ConflictError reports an insert of an email that already exists.
type ConflictError struct {
	// Email identifies the duplicate credential
	Email string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("credential %q already exists", e.Email)
}
