// Package identity handles credential tokens for the upstream service:
// decoding access-token claims locally and exchanging refresh tokens and
// quota queries with the identity endpoints.
package identity

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Claims are the token claims the pool cares about. Expiry drives
// refresh scheduling; subject and email identify the credential.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// TokenError represents a token that could not be decoded.
type TokenError struct {
	// Reason describes what failed
	Reason string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TokenError) Error() string {
	return fmt.Sprintf("token decode failed: %s", e.Reason)
}

// Unwrap returns the underlying error for error chain support.
func (e *TokenError) Unwrap() error {
	return e.Cause
}

// ParseClaims decodes the claims segment of a JWT without verifying the
// signature. Verification belongs to the upstream; locally the token is
// only inspected for expiry and identity, and URL-safe base64 with or
// without padding is tolerated.
func ParseClaims(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, &TokenError{Reason: fmt.Sprintf("expected 3 segments, got %d", len(parts))}
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, &TokenError{Reason: "claims segment is not base64", Cause: err}
	}

	var raw struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Exp   int64  `json:"exp"`
		Iat   int64  `json:"iat"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, &TokenError{Reason: "claims segment is not JSON", Cause: err}
	}

	claims := &Claims{Subject: raw.Sub, Email: raw.Email}
	if raw.Exp > 0 {
		claims.ExpiresAt = time.Unix(raw.Exp, 0).UTC()
	}
	if raw.Iat > 0 {
		claims.IssuedAt = time.Unix(raw.Iat, 0).UTC()
	}
	return claims, nil
}

// ExpiresWithin reports whether the token expires inside the buffer. A
// token whose claims cannot be decoded or that carries no expiry is
// treated as expiring, which errs on the side of refreshing.
func ExpiresWithin(token string, buffer time.Duration) bool {
	claims, err := ParseClaims(token)
	if err != nil || claims.ExpiresAt.IsZero() {
		return true
	}
	return time.Until(claims.ExpiresAt) < buffer
}

func decodeSegment(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
