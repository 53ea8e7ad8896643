package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Config holds the identity endpoints and the API key they require.
type Config struct {
	// RefreshURL is the token exchange endpoint
	RefreshURL string

	// QuotaURL is the usage/limits query endpoint
	QuotaURL string

	// APIKey authenticates calls to both endpoints
	APIKey string

	// Timeout bounds each identity call
	Timeout time.Duration
}

// Client talks to the identity endpoints. The zero timeout defaults to
// 30 seconds.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// RefreshError represents a failed token exchange.
type RefreshError struct {
	// StatusCode is the HTTP status from the identity endpoint (0 for
	// transport failures)
	StatusCode int

	// Message describes the failure
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *RefreshError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("token refresh failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("token refresh failed: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *RefreshError) Unwrap() error {
	return e.Cause
}

// TokenSet is the result of a successful token exchange.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// UsageSnapshot is the quota state reported for one credential.
type UsageSnapshot struct {
	Limit           int
	Used            int
	Unlimited       bool
	NextRefreshAt   time.Time
	RefreshInterval string
}

// Remaining returns the requests left in the current window. Unlimited
// credentials report -1.
func (u *UsageSnapshot) Remaining() int {
	if u.Unlimited {
		return -1
	}
	if r := u.Limit - u.Used; r > 0 {
		return r
	}
	return 0
}

// NewClient creates an identity client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// SetTransport swaps the underlying transport, used to route identity
// calls through an egress proxy.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient = &http.Client{Timeout: c.cfg.Timeout, Transport: rt}
}

// Refresh exchanges a refresh token for a fresh access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.RefreshURL+"?key="+url.QueryEscape(c.cfg.APIKey),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &RefreshError{Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RefreshError{Message: "identity endpoint unreachable", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &RefreshError{StatusCode: resp.StatusCode, Message: "read response", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RefreshError{StatusCode: resp.StatusCode, Message: truncate(string(body), 200)}
	}

	var parsed struct {
		AccessToken  string `json:"access_token"`
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &RefreshError{StatusCode: resp.StatusCode, Message: "malformed response", Cause: err}
	}

	token := parsed.AccessToken
	if token == "" {
		token = parsed.IDToken
	}
	if token == "" {
		return nil, &RefreshError{StatusCode: resp.StatusCode, Message: "response carries no token"}
	}

	set := &TokenSet{AccessToken: token, RefreshToken: parsed.RefreshToken}
	if claims, err := ParseClaims(token); err == nil {
		set.ExpiresAt = claims.ExpiresAt
	}
	return set, nil
}

// Quota fetches the usage snapshot for the credential behind accessToken.
// A 401 surfaces as *RefreshError with the status so callers can retry
// once after refreshing the token.
func (c *Client) Quota(ctx context.Context, accessToken string) (*UsageSnapshot, error) {
	payload, err := json.Marshal(map[string]any{
		"query": quotaQuery,
		"variables": map[string]any{
			"requestContext": map[string]any{},
		},
	})
	if err != nil {
		return nil, &RefreshError{Message: "build quota query", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.QuotaURL, strings.NewReader(string(payload)))
	if err != nil {
		return nil, &RefreshError{Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RefreshError{Message: "quota endpoint unreachable", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &RefreshError{StatusCode: resp.StatusCode, Message: "read response", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RefreshError{StatusCode: resp.StatusCode, Message: truncate(string(body), 200)}
	}

	var parsed struct {
		Data struct {
			User struct {
				User struct {
					RequestLimitInfo struct {
						IsUnlimited                  bool   `json:"isUnlimited"`
						RequestLimit                 int    `json:"requestLimit"`
						RequestsUsedSinceLastRefresh int    `json:"requestsUsedSinceLastRefresh"`
						NextRefreshTime              string `json:"nextRefreshTime"`
						RequestLimitRefreshDuration  string `json:"requestLimitRefreshDuration"`
					} `json:"requestLimitInfo"`
				} `json:"user"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &RefreshError{StatusCode: resp.StatusCode, Message: "malformed quota response", Cause: err}
	}

	info := parsed.Data.User.User.RequestLimitInfo
	snap := &UsageSnapshot{
		Limit:           info.RequestLimit,
		Used:            info.RequestsUsedSinceLastRefresh,
		Unlimited:       info.IsUnlimited,
		RefreshInterval: info.RequestLimitRefreshDuration,
	}
	if info.NextRefreshTime != "" {
		if t, err := time.Parse(time.RFC3339, info.NextRefreshTime); err == nil {
			snap.NextRefreshAt = t.UTC()
		}
	}
	return snap, nil
}

const quotaQuery = `query GetUser($requestContext: RequestContext!) {
  user(requestContext: $requestContext) {
    ... on UserOutput {
      user {
        requestLimitInfo {
          isUnlimited
          requestLimit
          requestsUsedSinceLastRefresh
          nextRefreshTime
          requestLimitRefreshDuration
        }
      }
    }
  }
}`

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
