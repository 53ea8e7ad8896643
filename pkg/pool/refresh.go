package pool

import (
	"context"
	"time"

	"heliox-hq/charon/pkg/identity"
	"heliox-hq/charon/pkg/pool/storage"
)

// ensureFresh refreshes the credential's access token when it expires
// within the configured buffer. A credential whose token is already past
// expiry and that has no refresh token is revoked on the spot: it can
// never authenticate again, so handing it out would only burn a retry
// attempt.
func (m *Manager) ensureFresh(ctx context.Context, cred *Credential) error {
	if !identity.ExpiresWithin(cred.AccessToken, m.cfg.RefreshBuffer) {
		return nil
	}

	if cred.RefreshToken == "" {
		expired := identity.ExpiresWithin(cred.AccessToken, 0)
		if !expired {
			// Still valid for a little while; use it and let the sweep
			// retire it when it lapses.
			return nil
		}
		if _, err := m.store.UpdateStatus(ctx, cred.Email, storage.StatusExpired); err != nil {
			m.logger.Warn("expired credential not persisted", "email", cred.Email, "error", err)
		}
		m.cache.invalidate()
		return &RevokedError{Email: cred.Email, Reason: "access token expired and no refresh token held"}
	}

	rec, err := m.store.Get(ctx, cred.Email)
	if err != nil {
		return err
	}
	if rec != nil && rec.LastRefresh != nil && time.Since(*rec.LastRefresh) < m.cfg.RefreshCooldown {
		// Refreshed recently; if the token is still short-lived the
		// identity endpoint is misbehaving and hammering it won't help.
		return nil
	}

	return m.refreshNow(ctx, cred)
}

// refreshNow performs the token exchange and persists the result.
func (m *Manager) refreshNow(ctx context.Context, cred *Credential) error {
	set, err := m.identity.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return &RefreshFailedError{Email: cred.Email, Cause: err}
	}

	refreshToken := set.RefreshToken
	if refreshToken == "" {
		refreshToken = cred.RefreshToken
	}

	now := time.Now()
	if err := m.store.UpdateTokens(ctx, cred.Email, set.AccessToken, refreshToken, now); err != nil {
		return err
	}

	cred.AccessToken = set.AccessToken
	cred.RefreshToken = refreshToken
	m.cache.invalidate()

	m.logger.Info("access token refreshed",
		"email", cred.Email,
		"expires_at", set.ExpiresAt,
	)
	return nil
}
