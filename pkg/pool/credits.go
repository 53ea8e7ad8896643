package pool

import (
	"context"
	"errors"
	"net/http"
	"time"

	"heliox-hq/charon/pkg/identity"
	"heliox-hq/charon/pkg/pool/storage"
)

// RefreshQuota fetches and persists the usage snapshot for one
// credential. A 401 from the quota endpoint gets exactly one retry after
// a forced token refresh; a second 401 means the credential is dead.
func (m *Manager) RefreshQuota(ctx context.Context, email string) (*storage.QuotaSnapshot, error) {
	rec, err := m.store.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &storage.NotFoundError{Email: email}
	}

	cred := credentialFromRecord(rec)
	snap, err := m.identity.Quota(ctx, cred.AccessToken)
	if err != nil && isUnauthorized(err) && cred.RefreshToken != "" {
		if refreshErr := m.refreshNow(ctx, cred); refreshErr != nil {
			return nil, refreshErr
		}
		snap, err = m.identity.Quota(ctx, cred.AccessToken)
	}
	if err != nil {
		return nil, err
	}

	quota := &storage.QuotaSnapshot{
		Limit:           snap.Limit,
		Used:            snap.Used,
		Unlimited:       snap.Unlimited,
		NextRefreshAt:   snap.NextRefreshAt,
		RefreshInterval: snap.RefreshInterval,
		CheckedAt:       time.Now(),
	}
	if err := m.store.UpdateQuota(ctx, email, quota); err != nil {
		return nil, err
	}
	m.cache.invalidate()

	m.logger.Debug("quota refreshed",
		"email", email,
		"remaining", quota.Remaining(),
		"unlimited", quota.Unlimited,
	)
	return quota, nil
}

// RefreshAllQuotas refreshes every active credential's snapshot, best
// effort. Returns how many refreshed cleanly.
func (m *Manager) RefreshAllQuotas(ctx context.Context) (int, error) {
	records, err := m.store.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	ok := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return ok, ctx.Err()
		}
		if _, err := m.RefreshQuota(ctx, rec.Email); err != nil {
			m.logger.Warn("quota refresh failed", "email", rec.Email, "error", err)
			continue
		}
		ok++
	}
	return ok, nil
}

// RecordQuotaExhausted marks a credential's snapshot as drained after the
// upstream rejected it for quota, so allocation stops offering it until
// its window rolls over.
func (m *Manager) RecordQuotaExhausted(ctx context.Context, email string) error {
	rec, err := m.store.Get(ctx, email)
	if err != nil {
		return err
	}
	if rec == nil {
		return &storage.NotFoundError{Email: email}
	}

	quota := rec.Quota
	if quota == nil {
		quota = &storage.QuotaSnapshot{}
	}
	if quota.Limit > 0 {
		quota.Used = quota.Limit
	} else {
		quota.Limit, quota.Used = 1, 1
	}
	quota.Unlimited = false
	quota.CheckedAt = time.Now()

	if err := m.store.UpdateQuota(ctx, email, quota); err != nil {
		return err
	}
	m.cache.invalidate()
	return nil
}

func isUnauthorized(err error) bool {
	var refreshErr *identity.RefreshError
	if errors.As(err, &refreshErr) {
		return refreshErr.StatusCode == http.StatusUnauthorized
	}
	return false
}
