package identity

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

// makeToken builds an unsigned JWT with the given claims.
func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return header + "." + body + ".sig"
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	token := makeToken(t, map[string]any{
		"sub":   "user-1",
		"email": "a@example.com",
		"exp":   exp,
		"iat":   exp - 3600,
	})

	claims, err := ParseClaims(token)
	if err != nil {
		t.Fatalf("ParseClaims() error = %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "a@example.com" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ExpiresAt.Unix() != exp {
		t.Errorf("exp = %v, want %v", claims.ExpiresAt.Unix(), exp)
	}
}

func TestParseClaimsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "not a jwt", token: "plain-string"},
		{name: "two segments", token: "a.b"},
		{name: "bad base64", token: "a.!!!.c"},
		{name: "claims not json", token: "a." + base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseClaims(tt.token); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExpiresWithin(t *testing.T) {
	near := makeToken(t, map[string]any{"exp": time.Now().Add(5 * time.Minute).Unix()})
	far := makeToken(t, map[string]any{"exp": time.Now().Add(2 * time.Hour).Unix()})

	if !ExpiresWithin(near, 10*time.Minute) {
		t.Error("token expiring in 5m should be within 10m buffer")
	}
	if ExpiresWithin(far, 10*time.Minute) {
		t.Error("token expiring in 2h should not be within 10m buffer")
	}
	if !ExpiresWithin("garbage", time.Minute) {
		t.Error("undecodable token must count as expiring")
	}
	if !ExpiresWithin(makeToken(t, map[string]any{"sub": "x"}), time.Minute) {
		t.Error("token without exp must count as expiring")
	}
}

func TestRefresh(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	access := makeToken(t, map[string]any{"exp": exp, "email": "a@example.com"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.Form.Get("refresh_token"); got != "rt-1" {
			t.Errorf("refresh_token = %q", got)
		}
		if got := r.URL.Query().Get("key"); got != "api-key" {
			t.Errorf("key = %q", got)
		}
		fmt.Fprintf(w, `{"access_token":%q,"refresh_token":"rt-2","expires_in":"3600"}`, access)
	}))
	defer srv.Close()

	c := NewClient(Config{RefreshURL: srv.URL, APIKey: "api-key"})
	set, err := c.Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if set.AccessToken != access {
		t.Error("access token mismatch")
	}
	if set.RefreshToken != "rt-2" {
		t.Errorf("refresh token = %q", set.RefreshToken)
	}
	if set.ExpiresAt.Unix() != exp {
		t.Errorf("expires = %v", set.ExpiresAt)
	}
}

func TestRefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Config{RefreshURL: srv.URL, APIKey: "k"})
	_, err := c.Refresh(context.Background(), "dead")
	if err == nil {
		t.Fatal("expected error")
	}
	var refreshErr *RefreshError
	if !errors.As(err, &refreshErr) || refreshErr.StatusCode != http.StatusBadRequest {
		t.Errorf("err = %v", err)
	}
}

func TestQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		fmt.Fprint(w, `{"data":{"user":{"user":{"requestLimitInfo":{
			"isUnlimited":false,"requestLimit":150,"requestsUsedSinceLastRefresh":40,
			"nextRefreshTime":"2026-10-01T00:00:00Z","requestLimitRefreshDuration":"MONTHLY"}}}}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{QuotaURL: srv.URL, APIKey: "k"})
	snap, err := c.Quota(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Quota() error = %v", err)
	}
	if snap.Limit != 150 || snap.Used != 40 || snap.Unlimited {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Remaining() != 110 {
		t.Errorf("remaining = %d", snap.Remaining())
	}
	if snap.NextRefreshAt.IsZero() {
		t.Error("next refresh not parsed")
	}
}

func TestUsageSnapshotRemaining(t *testing.T) {
	if (&UsageSnapshot{Unlimited: true}).Remaining() != -1 {
		t.Error("unlimited should report -1")
	}
	if (&UsageSnapshot{Limit: 10, Used: 25}).Remaining() != 0 {
		t.Error("overdrawn should clamp to 0")
	}
}
