// Package pool manages the leasable credential pool: allocation in
// least-recently-used order under a bounded critical section, lease
// lifecycle, revocation, token refresh, and quota tracking.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"heliox-hq/charon/pkg/identity"
	"heliox-hq/charon/pkg/pool/storage"
)

// Config tunes the pool manager. Zero values take the documented
// defaults.
type Config struct {
	// LockTimeout bounds the allocation critical section. Default: 3s.
	LockTimeout time.Duration

	// CacheTTL is how long the active-credential snapshot stays fresh.
	// Default: 30s.
	CacheTTL time.Duration

	// LeaseTTL is the default lease duration when the caller passes none.
	// Default: 10m.
	LeaseTTL time.Duration

	// RefreshBuffer refreshes access tokens that expire within it.
	// Default: 10m.
	RefreshBuffer time.Duration

	// RefreshCooldown is the minimum gap between refreshes of the same
	// credential. Default: 1h.
	RefreshCooldown time.Duration

	// StaleAfter is how long blocked/expired credentials are kept before
	// cleanup removes them. Default: 30 days.
	StaleAfter time.Duration
}

func (c *Config) applyDefaults() {
	if c.LockTimeout <= 0 {
		c.LockTimeout = 3 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 10 * time.Minute
	}
	if c.RefreshBuffer <= 0 {
		c.RefreshBuffer = 10 * time.Minute
	}
	if c.RefreshCooldown <= 0 {
		c.RefreshCooldown = time.Hour
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 30 * 24 * time.Hour
	}
}

// Manager owns the credential pool.
type Manager struct {
	cfg      Config
	store    storage.Store
	identity *identity.Client
	cache    *activeCache
	logger   *slog.Logger

	// sem serializes allocation; a channel instead of a mutex so entry
	// can time out.
	sem chan struct{}

	mu          sync.Mutex
	leases      map[string]*Lease
	locked      map[string]string // email -> lease ID
	provisioner Provisioner
}

// NewManager creates a pool manager over the given store and identity
// client.
func NewManager(store storage.Store, idClient *identity.Client, cfg Config) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:      cfg,
		store:    store,
		identity: idClient,
		cache:    newActiveCache(store, cfg.CacheTTL),
		logger:   slog.Default().With("component", "pool"),
		sem:      make(chan struct{}, 1),
		leases:   make(map[string]*Lease),
		locked:   make(map[string]string),
	}
	return m
}

// SetProvisioner installs a fallback credential source consulted when
// allocation finds the pool empty.
func (m *Manager) SetProvisioner(p Provisioner) {
	m.mu.Lock()
	m.provisioner = p
	m.mu.Unlock()
}

// AllocateOptions tunes one allocation.
type AllocateOptions struct {
	// Count is how many credentials to lease. Default: 1.
	Count int

	// TTL overrides the default lease duration.
	TTL time.Duration

	// Exclude skips credentials by email, used by the retry layer to
	// force a different credential after a quota rejection.
	Exclude []string

	// ForceRefresh bypasses the active-snapshot cache.
	ForceRefresh bool
}

// Allocate leases credentials in least-recently-used order. Credentials
// already held by another lease are skipped; an empty pool consults the
// provisioner once before giving up with *ExhaustedError.
func (m *Manager) Allocate(ctx context.Context, opts AllocateOptions) (*Lease, error) {
	if opts.Count <= 0 {
		opts.Count = 1
	}
	if opts.TTL <= 0 {
		opts.TTL = m.cfg.LeaseTTL
	}

	if err := m.acquireSem(ctx); err != nil {
		return nil, err
	}
	defer m.releaseSem()

	lease, err := m.allocateLocked(ctx, opts)
	if err == nil {
		return lease, nil
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		return nil, err
	}

	// Last resort: ask the provisioner for a fresh credential.
	m.mu.Lock()
	prov := m.provisioner
	m.mu.Unlock()
	if prov == nil {
		return nil, err
	}

	rec, provErr := prov.Provision(ctx)
	if provErr != nil {
		m.logger.Warn("provisioner failed", "error", provErr)
		return nil, err
	}
	if insErr := m.store.Insert(ctx, rec); insErr != nil {
		m.logger.Warn("provisioned credential not stored", "email", rec.Email, "error", insErr)
		return nil, err
	}
	m.logger.Info("provisioned credential", "email", rec.Email)
	m.cache.invalidate()

	opts.ForceRefresh = true
	return m.allocateLocked(ctx, opts)
}

// allocateLocked runs one allocation pass. Caller holds the semaphore.
func (m *Manager) allocateLocked(ctx context.Context, opts AllocateOptions) (*Lease, error) {
	records, err := m.cache.snapshot(ctx, opts.ForceRefresh)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, e := range opts.Exclude {
		excluded[e] = true
	}

	now := time.Now()
	var picked []*Credential
	lockedCount, excludedCount := 0, 0

	m.mu.Lock()
	m.expireLeasesLocked(now)
	for _, rec := range records {
		if len(picked) == opts.Count {
			break
		}
		if _, held := m.locked[rec.Email]; held {
			lockedCount++
			continue
		}
		if excluded[rec.Email] {
			excludedCount++
			continue
		}
		cred := credentialFromRecord(rec)
		if !cred.HasQuota() {
			continue
		}
		picked = append(picked, cred)
	}

	if len(picked) < opts.Count {
		m.mu.Unlock()
		return nil, &ExhaustedError{Active: len(records), Locked: lockedCount, Excluded: excludedCount}
	}

	lease := &Lease{
		ID:          uuid.NewString(),
		Credentials: picked,
		CreatedAt:   now,
		ExpiresAt:   now.Add(opts.TTL),
	}
	m.leases[lease.ID] = lease
	for _, cred := range picked {
		m.locked[cred.Email] = lease.ID
	}
	m.mu.Unlock()

	// Token freshness is ensured after the exclusivity bookkeeping so a
	// slow identity endpoint never extends the map critical section.
	for _, cred := range picked {
		if err := m.ensureFresh(ctx, cred); err != nil {
			m.Release(lease.ID)
			return nil, err
		}
	}

	for _, cred := range picked {
		if err := m.store.Touch(ctx, cred.Email, now); err != nil {
			m.logger.Warn("use not recorded", "email", cred.Email, "error", err)
		}
	}
	m.cache.invalidate()

	m.logger.Debug("lease allocated",
		"lease_id", lease.ID,
		"credentials", len(picked),
		"expires_at", lease.ExpiresAt,
	)
	return lease, nil
}

// Release returns a lease's credentials to the pool. Unknown or expired
// lease IDs are a no-op.
func (m *Manager) Release(leaseID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lease, ok := m.leases[leaseID]
	if !ok {
		return
	}
	delete(m.leases, leaseID)
	for _, cred := range lease.Credentials {
		if m.locked[cred.Email] == leaseID {
			delete(m.locked, cred.Email)
		}
	}
}

// MarkRevoked transitions credentials to blocked. The reference is an
// exact email when it contains "@", otherwise it is matched as an access
// token prefix (callers often only have the token the upstream rejected).
// Returns the number of credentials transitioned.
func (m *Manager) MarkRevoked(ctx context.Context, ref string) (int64, error) {
	var (
		n   int64
		err error
	)
	if strings.Contains(ref, "@") {
		n, err = m.store.UpdateStatus(ctx, ref, storage.StatusBlocked)
	} else {
		n, err = m.store.UpdateStatusByTokenPrefix(ctx, ref, storage.StatusBlocked)
	}
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.cache.invalidate()
		m.unlockByRef(ref)
		m.logger.Warn("credentials revoked", "ref_is_email", strings.Contains(ref, "@"), "count", n)
	}
	return n, nil
}

// unlockByRef drops revoked credentials out of any live lease so they
// cannot be handed back.
func (m *Manager) unlockByRef(ref string) {
	byEmail := strings.Contains(ref, "@")

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lease := range m.leases {
		kept := lease.Credentials[:0]
		for _, cred := range lease.Credentials {
			revoked := (byEmail && cred.Email == ref) ||
				(!byEmail && strings.HasPrefix(cred.AccessToken, ref))
			if revoked {
				delete(m.locked, cred.Email)
				continue
			}
			kept = append(kept, cred)
		}
		lease.Credentials = kept
	}
}

// RefreshCache forces the active snapshot to re-read the store.
func (m *Manager) RefreshCache(ctx context.Context) error {
	_, err := m.cache.snapshot(ctx, true)
	return err
}

// ExpireLeases drops lapsed leases. The sweeper calls this periodically;
// allocation also expires opportunistically.
func (m *Manager) ExpireLeases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expireLeasesLocked(time.Now())
}

func (m *Manager) expireLeasesLocked(now time.Time) int {
	expired := 0
	for id, lease := range m.leases {
		if !lease.Expired(now) {
			continue
		}
		delete(m.leases, id)
		for _, cred := range lease.Credentials {
			if m.locked[cred.Email] == id {
				delete(m.locked, cred.Email)
			}
		}
		expired++
	}
	if expired > 0 {
		m.logger.Info("leases expired", "count", expired)
	}
	return expired
}

// CleanupStale deletes blocked and expired credentials older than the
// configured retention.
func (m *Manager) CleanupStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-m.cfg.StaleAfter)
	var total int64
	for _, status := range []string{storage.StatusBlocked, storage.StatusExpired} {
		n, err := m.store.DeleteStale(ctx, status, cutoff)
		if err != nil {
			return total, err
		}
		total += n
	}
	if total > 0 {
		m.cache.invalidate()
	}
	return total, nil
}

// Status is a point-in-time view of the pool for diagnostics.
type Status struct {
	Counts       map[string]int `json:"counts"`
	ActiveLeases int            `json:"active_leases"`
	LockedCount  int            `json:"locked_credentials"`
	CacheAge     string         `json:"cache_age"`
}

// Status reports pool counts and lease state.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	counts, err := m.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	leases := len(m.leases)
	locked := len(m.locked)
	m.mu.Unlock()

	age := "none"
	if a := m.cache.age(); a >= 0 {
		age = a.Truncate(time.Millisecond).String()
	}

	return &Status{
		Counts:       counts,
		ActiveLeases: leases,
		LockedCount:  locked,
		CacheAge:     age,
	}, nil
}

// Store exposes the backing store for the CLI surface.
func (m *Manager) Store() storage.Store {
	return m.store
}

func (m *Manager) acquireSem(ctx context.Context) error {
	timer := time.NewTimer(m.cfg.LockTimeout)
	defer timer.Stop()

	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return &LockTimeoutError{Timeout: m.cfg.LockTimeout}
	}
}

func (m *Manager) releaseSem() {
	<-m.sem
}
