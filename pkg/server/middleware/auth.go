package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"heliox-hq/charon/pkg/server/api"

	json "github.com/goccy/go-json"
)

// Auth enforces bearer API key authentication when a key is configured.
// An empty key disables the check. The exempt paths (health and metrics
// probes) always pass.
func Auth(apiKey string, exempt ...string) func(http.Handler) http.Handler {
	exemptSet := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		exemptSet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := exemptSet[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			presented := bearerToken(r)
			if presented == "" {
				writeAuthError(w, api.NewAuthenticationError(
					"Missing API key. Pass it as 'Authorization: Bearer <key>'.",
					api.CodeMissingAPIKey,
				))
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				writeAuthError(w, api.NewAuthenticationError(
					"Invalid API key.",
					api.CodeInvalidAPIKey,
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return token
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, resp *api.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(resp)
}
