package bridge

import (
	"bytes"
	"context"
	"net/http"
	"time"
)

// Config tunes the upstream exchange.
type Config struct {
	// URL is the upstream agent endpoint.
	URL string

	// HeartbeatTimeout is the longest the stream may go without a frame
	// before the attempt is abandoned as stalled. Default: 60s.
	HeartbeatTimeout time.Duration

	// ClientVersion, OSCategory, OSName and OSVersion populate the
	// client identification headers the upstream expects.
	ClientVersion string
	OSCategory    string
	OSName        string
	OSVersion     string
}

func (c *Config) applyDefaults() {
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 60 * time.Second
	}
	if c.ClientVersion == "" {
		c.ClientVersion = "v0.2025.08.06.08.12.stable_02"
	}
	if c.OSCategory == "" {
		c.OSCategory = "Windows"
	}
	if c.OSName == "" {
		c.OSName = "Windows"
	}
	if c.OSVersion == "" {
		c.OSVersion = "11 (26100)"
	}
}

// newRequest builds the streaming POST carrying one encoded packet.
func (b *Bridge) newRequest(ctx context.Context, token string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Warp-Client-Version", b.cfg.ClientVersion)
	req.Header.Set("X-Warp-Os-Category", b.cfg.OSCategory)
	req.Header.Set("X-Warp-Os-Name", b.cfg.OSName)
	req.Header.Set("X-Warp-Os-Version", b.cfg.OSVersion)
	return req, nil
}
