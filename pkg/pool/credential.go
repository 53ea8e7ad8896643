package pool

import (
	"time"

	"heliox-hq/charon/pkg/pool/storage"
)

// Credential is the in-memory view of one pool credential handed to
// callers under a lease. It carries everything an exchange needs; the
// stored record stays inside the pool.
type Credential struct {
	Email        string
	AccessToken  string
	RefreshToken string

	LastUsed *time.Time
	UseCount int64
	Quota    *storage.QuotaSnapshot
}

func credentialFromRecord(rec *storage.Record) *Credential {
	return &Credential{
		Email:        rec.Email,
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		LastUsed:     rec.LastUsed,
		UseCount:     rec.UseCount,
		Quota:        rec.Quota,
	}
}

// HasQuota reports whether the credential is known to have requests left.
// A credential with no recorded snapshot counts as usable; staleness is
// resolved by the quota refresh jobs, not here.
func (c *Credential) HasQuota() bool {
	if c.Quota == nil || c.Quota.CheckedAt.IsZero() {
		return true
	}
	if c.Quota.Unlimited {
		return true
	}
	if c.Quota.Remaining() > 0 {
		return true
	}
	// Window may have rolled over since the snapshot.
	return !c.Quota.NextRefreshAt.IsZero() && time.Now().After(c.Quota.NextRefreshAt)
}
