package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"heliox-hq/charon/pkg/pool"
	"heliox-hq/charon/pkg/pool/storage"
	"heliox-hq/charon/pkg/server/api"
	"heliox-hq/charon/pkg/telemetry/metrics"

	json "github.com/goccy/go-json"
)

// allocateRequest is the body of POST /api/accounts/allocate.
type allocateRequest struct {
	// Exclude lists emails the caller does not want back.
	Exclude []string `json:"exclude,omitempty"`

	// ForceRefresh bypasses the pool snapshot cache.
	ForceRefresh bool `json:"force_refresh,omitempty"`
}

// allocateResponse returns the granted lease. The access token is the
// whole point of the pool API; callers hold it for the lease lifetime.
type allocateResponse struct {
	LeaseID   string    `json:"lease_id"`
	Email     string    `json:"email"`
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// accountView is one row of GET /api/accounts/list. Tokens are never
// listed; allocation is the only way to obtain one.
type accountView struct {
	Email       string                 `json:"email"`
	Status      string                 `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	LastUsed    *time.Time             `json:"last_used,omitempty"`
	LastRefresh *time.Time             `json:"last_refresh,omitempty"`
	UseCount    int64                  `json:"use_count"`
	Quota       *storage.QuotaSnapshot `json:"quota,omitempty"`
}

func (s *Server) handleAccountsAllocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, api.NewInvalidRequestError("Use POST.", "method", "method_not_allowed"))
		return
	}

	var req allocateRequest
	if r.Body != nil {
		// An empty body means default options.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	start := time.Now()
	lease, err := s.deps.Pool.Allocate(r.Context(), pool.AllocateOptions{
		Exclude:      req.Exclude,
		ForceRefresh: req.ForceRefresh,
	})
	if err != nil {
		s.recordAllocation(metrics.AllocationExhausted, time.Since(start))
		var exhausted *pool.ExhaustedError
		if errors.As(err, &exhausted) {
			writeError(w, api.NewServiceUnavailableError(
				"No credentials available.", api.CodePoolExhausted))
			return
		}
		writeError(w, api.NewServerError("Allocation failed."))
		return
	}
	s.recordAllocation(metrics.AllocationOK, time.Since(start))

	cred := lease.First()
	writeJSON(w, http.StatusOK, allocateResponse{
		LeaseID:   lease.ID,
		Email:     cred.Email,
		Token:     cred.AccessToken,
		ExpiresAt: lease.ExpiresAt,
	})
}

func (s *Server) handleAccountsRelease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, api.NewInvalidRequestError("Use POST.", "method", "method_not_allowed"))
		return
	}

	var req struct {
		LeaseID string `json:"lease_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LeaseID == "" {
		writeError(w, api.NewInvalidRequestError("lease_id is required.", "lease_id", api.CodeInvalidValue))
		return
	}

	// Release is idempotent; releasing an unknown lease is a no-op.
	s.deps.Pool.Release(req.LeaseID)
	writeJSON(w, http.StatusOK, map[string]bool{"released": true})
}

func (s *Server) handleAccountsMarkBlocked(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, api.NewInvalidRequestError("Use POST.", "method", "method_not_allowed"))
		return
	}

	var req struct {
		Email       string `json:"email,omitempty"`
		TokenPrefix string `json:"token_prefix,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, api.NewInvalidRequestError("invalid JSON body", "body", api.CodeInvalidJSON))
		return
	}

	ref := req.Email
	if ref == "" {
		ref = req.TokenPrefix
	}
	if ref == "" {
		writeError(w, api.NewInvalidRequestError(
			"email or token_prefix is required.", "email", api.CodeInvalidValue))
		return
	}

	n, err := s.deps.Pool.MarkRevoked(r.Context(), ref)
	if err != nil {
		writeError(w, api.NewServerError("Failed to mark credential blocked."))
		return
	}
	if n == 0 {
		writeError(w, api.NewErrorResponse(
			"No matching credential.", api.ErrorTypeNotFound, "", ""))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"blocked": n})
}

func (s *Server) handleAccountsRefreshCredits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, api.NewInvalidRequestError("Use POST.", "method", "method_not_allowed"))
		return
	}

	var req struct {
		Email string `json:"email,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if req.Email != "" {
		snap, err := s.deps.Pool.RefreshQuota(r.Context(), req.Email)
		if err != nil {
			var notFound *storage.NotFoundError
			if errors.As(err, &notFound) {
				writeError(w, api.NewErrorResponse(
					"No matching credential.", api.ErrorTypeNotFound, "", ""))
				return
			}
			writeError(w, api.NewServerError("Quota refresh failed."))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"refreshed": 1, "quota": snap})
		return
	}

	n, err := s.deps.Pool.RefreshAllQuotas(r.Context())
	if err != nil {
		writeError(w, api.NewServerError("Quota refresh failed."))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"refreshed": n})
}

func (s *Server) handleAccountsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, api.NewInvalidRequestError("Use GET.", "method", "method_not_allowed"))
		return
	}

	q := r.URL.Query()
	status := q.Get("status")
	limit := queryInt(q.Get("limit"), 100)
	offset := queryInt(q.Get("offset"), 0)

	records, err := s.deps.Pool.Store().List(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, api.NewServerError("Failed to list credentials."))
		return
	}

	views := make([]accountView, 0, len(records))
	for _, rec := range records {
		views = append(views, accountView{
			Email:       rec.Email,
			Status:      rec.Status,
			CreatedAt:   rec.CreatedAt,
			LastUsed:    rec.LastUsed,
			LastRefresh: rec.LastRefresh,
			UseCount:    rec.UseCount,
			Quota:       rec.Quota,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": views,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.deps.Pool.Status(r.Context())
	if err != nil {
		writeError(w, api.NewServerError("Failed to read pool status."))
		return
	}

	if s.deps.Collector != nil {
		for st, n := range status.Counts {
			s.deps.Collector.SetCredentialCount(st, n)
		}
		s.deps.Collector.SetCredentialCount(metrics.StatusLeased, status.ActiveLeases)
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) recordAllocation(result string, d time.Duration) {
	if s.deps.Collector != nil {
		s.deps.Collector.RecordAllocation(result, d)
	}
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
