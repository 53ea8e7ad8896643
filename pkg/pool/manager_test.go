package pool

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heliox-hq/charon/pkg/identity"
	"heliox-hq/charon/pkg/pool/storage"
)

// testToken builds an unsigned JWT expiring at exp.
func testToken(t *testing.T, email string, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload, err := json.Marshal(map[string]any{"email": email, "exp": exp.Unix()})
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

type testPool struct {
	manager *Manager
	store   *storage.SQLiteStore
	refresh *httptest.Server
}

func newTestPool(t *testing.T, cfg Config) *testPool {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "pool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// Identity endpoint that always hands back a fresh one-hour token.
	refresh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := testToken(t, "refreshed@example.com", time.Now().Add(time.Hour))
		fmt.Fprintf(w, `{"access_token":%q,"refresh_token":"rt-new"}`, tok)
	}))
	t.Cleanup(refresh.Close)

	idClient := identity.NewClient(identity.Config{RefreshURL: refresh.URL, APIKey: "test"})
	return &testPool{
		manager: NewManager(store, idClient, cfg),
		store:   store,
		refresh: refresh,
	}
}

func (p *testPool) addCredential(t *testing.T, email string, opts ...func(*storage.Record)) {
	t.Helper()
	rec := &storage.Record{
		Email:       email,
		AccessToken: testToken(t, email, time.Now().Add(2*time.Hour)),
	}
	for _, opt := range opts {
		opt(rec)
	}
	require.NoError(t, p.store.Insert(context.Background(), rec))
}

func TestAllocateExclusivity(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})
	p.addCredential(t, "only@example.com")

	lease, err := p.manager.Allocate(ctx, AllocateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "only@example.com", lease.First().Email)

	// The same credential cannot be leased twice.
	_, err = p.manager.Allocate(ctx, AllocateOptions{})
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, exhausted.Locked)

	// Release returns it.
	p.manager.Release(lease.ID)
	again, err := p.manager.Allocate(ctx, AllocateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "only@example.com", again.First().Email)
}

func TestReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})
	p.addCredential(t, "a@example.com")

	lease, err := p.manager.Allocate(ctx, AllocateOptions{})
	require.NoError(t, err)

	p.manager.Release(lease.ID)
	p.manager.Release(lease.ID)
	p.manager.Release("never-existed")
}

func TestLeaseExpiry(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})
	p.addCredential(t, "a@example.com")

	_, err := p.manager.Allocate(ctx, AllocateOptions{TTL: 10 * time.Millisecond})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, p.manager.ExpireLeases())

	// Expired lease no longer blocks allocation.
	_, err = p.manager.Allocate(ctx, AllocateOptions{ForceRefresh: true})
	require.NoError(t, err)
}

func TestAllocateLRUOrder(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})

	p.addCredential(t, "used@example.com")
	require.NoError(t, p.store.Touch(ctx, "used@example.com", time.Now()))
	p.addCredential(t, "fresh@example.com")

	lease, err := p.manager.Allocate(ctx, AllocateOptions{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, "fresh@example.com", lease.First().Email, "never-used credential drains first")
}

func TestAllocateExclude(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})
	p.addCredential(t, "a@example.com")
	p.addCredential(t, "b@example.com")

	lease, err := p.manager.Allocate(ctx, AllocateOptions{
		Exclude:      []string{"a@example.com"},
		ForceRefresh: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", lease.First().Email)
}

func TestMarkRevoked(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})
	p.addCredential(t, "a@example.com")

	lease, err := p.manager.Allocate(ctx, AllocateOptions{})
	require.NoError(t, err)
	token := lease.First().AccessToken

	// Revoke by token prefix, as the retry layer does after a ban.
	n, err := p.manager.MarkRevoked(ctx, token[:24])
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rec, err := p.store.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusBlocked, rec.Status)

	// The revoked credential is gone from the pool.
	_, err = p.manager.Allocate(ctx, AllocateOptions{ForceRefresh: true})
	var exhausted *ExhaustedError
	assert.ErrorAs(t, err, &exhausted)
}

func TestMarkRevokedByEmail(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})
	p.addCredential(t, "a@example.com")

	n, err := p.manager.MarkRevoked(ctx, "a@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = p.manager.MarkRevoked(ctx, "missing@example.com")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpiredTokenWithoutRefreshTokenIsRevoked(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})

	rec := &storage.Record{
		Email:       "dead@example.com",
		AccessToken: testToken(t, "dead@example.com", time.Now().Add(-time.Hour)),
		// no refresh token
	}
	require.NoError(t, p.store.Insert(ctx, rec))

	_, err := p.manager.Allocate(ctx, AllocateOptions{})
	var revoked *RevokedError
	require.ErrorAs(t, err, &revoked)
	assert.Equal(t, "dead@example.com", revoked.Email)

	stored, err := p.store.Get(ctx, "dead@example.com")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusExpired, stored.Status)
}

func TestExpiringTokenIsRefreshed(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})

	old := testToken(t, "a@example.com", time.Now().Add(time.Minute))
	rec := &storage.Record{
		Email:        "a@example.com",
		AccessToken:  old,
		RefreshToken: "rt-1",
	}
	require.NoError(t, p.store.Insert(ctx, rec))

	lease, err := p.manager.Allocate(ctx, AllocateOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, old, lease.First().AccessToken, "token should have been refreshed")

	stored, err := p.store.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, lease.First().AccessToken, stored.AccessToken)
	assert.NotNil(t, stored.LastRefresh)
}

func TestRefreshCooldownSkipsRecentRefresh(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})

	near := testToken(t, "a@example.com", time.Now().Add(time.Minute))
	rec := &storage.Record{
		Email:        "a@example.com",
		AccessToken:  near,
		RefreshToken: "rt-1",
	}
	require.NoError(t, p.store.Insert(ctx, rec))
	// Simulate a refresh moments ago.
	require.NoError(t, p.store.UpdateTokens(ctx, "a@example.com", near, "rt-1", time.Now()))

	lease, err := p.manager.Allocate(ctx, AllocateOptions{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, near, lease.First().AccessToken, "cooldown must suppress the refresh")
}

func TestQuotaExhaustedCredentialSkipped(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})
	p.addCredential(t, "drained@example.com")
	p.addCredential(t, "ok@example.com")

	require.NoError(t, p.manager.RecordQuotaExhausted(ctx, "drained@example.com"))

	lease, err := p.manager.Allocate(ctx, AllocateOptions{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, "ok@example.com", lease.First().Email)
}

func TestProvisionerFallback(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})

	p.manager.SetProvisioner(ProvisionerFunc(func(ctx context.Context) (*storage.Record, error) {
		return &storage.Record{
			Email:       "provisioned@example.com",
			AccessToken: testToken(t, "provisioned@example.com", time.Now().Add(time.Hour)),
		}, nil
	}))

	lease, err := p.manager.Allocate(ctx, AllocateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "provisioned@example.com", lease.First().Email)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, Config{})
	p.addCredential(t, "a@example.com")
	p.addCredential(t, "b@example.com")

	_, err := p.manager.Allocate(ctx, AllocateOptions{})
	require.NoError(t, err)

	status, err := p.manager.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Counts[storage.StatusActive])
	assert.Equal(t, 1, status.ActiveLeases)
	assert.Equal(t, 1, status.LockedCount)
}
