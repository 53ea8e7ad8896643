package config

import "time"

// Config is the root configuration structure for Charon. It contains all
// configuration sections for the gateway server, the credential pool, the
// identity provider, egress routing, the upstream exchange, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and authentication.
	Server ServerConfig `yaml:"server"`

	// Pool contains configuration for the credential pool: storage path,
	// lease and lock timing, refresh policy, and sweep scheduling.
	Pool PoolConfig `yaml:"pool"`

	// Identity contains configuration for the identity provider endpoints
	// used for token refresh and quota queries.
	Identity IdentityConfig `yaml:"identity"`

	// Egress contains outbound proxy configuration.
	Egress EgressConfig `yaml:"egress"`

	// Upstream contains configuration for the upstream agent exchange.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Failover contains the retry ladder bounds.
	Failover FailoverConfig `yaml:"failover"`

	// Models lists the model ids exposed through the OpenAI surface.
	Models ModelsConfig `yaml:"models"`

	// Dedup contains the duplicate-request cache settings for the unary
	// chat path.
	Dedup DedupConfig `yaml:"dedup"`

	// Telemetry contains configuration for observability including logging
	// and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8000", "0.0.0.0:8000").
	// Default: "127.0.0.1:8000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes. Zero means no timeout, which streaming responses require.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown. Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxRequestBytes bounds the request body. Default: 10485760 (10 MiB)
	MaxRequestBytes int64 `yaml:"max_request_bytes"`

	// APIKey, when set, is required as a Bearer token on the OpenAI
	// surface. Empty disables authentication.
	APIKey string `yaml:"api_key"`

	// EnableCORS enables permissive CORS headers for browser clients.
	// Default: true
	EnableCORS bool `yaml:"enable_cors"`
}

// PoolConfig contains configuration for the credential pool.
type PoolConfig struct {
	// DatabasePath is the SQLite database file holding credentials.
	// Default: "charon.db"
	DatabasePath string `yaml:"database_path"`

	// LockTimeout bounds how long an allocation waits for the pool's
	// exclusive region before rejecting. Default: 3s
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// LeaseTTL is the default lease duration when the caller does not
	// specify one. Default: 10m
	LeaseTTL time.Duration `yaml:"lease_ttl"`

	// CacheTTL is how long the active-credential snapshot is reused
	// before re-reading the store. Default: 30s
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// RefreshBuffer refreshes access tokens that expire within this
	// window. Default: 10m
	RefreshBuffer time.Duration `yaml:"refresh_buffer"`

	// RefreshCooldown suppresses repeat refreshes of one credential
	// within this window. Default: 1h
	RefreshCooldown time.Duration `yaml:"refresh_cooldown"`

	// SweepSchedule is the cron expression for the lease/cache sweep.
	// Default: "@every 1m"
	SweepSchedule string `yaml:"sweep_schedule"`

	// CreditRefreshSchedule is the cron expression for the periodic
	// quota-snapshot refresh of all active credentials.
	// Default: "@every 10m"
	CreditRefreshSchedule string `yaml:"credit_refresh_schedule"`

	// CleanupSchedule is the cron expression for stale credential
	// deletion. Default: "0 4 * * *"
	CleanupSchedule string `yaml:"cleanup_schedule"`

	// StaleAfter is the retention window for non-active credentials
	// before the cleanup deletes them. Default: 720h (30 days)
	StaleAfter time.Duration `yaml:"stale_after"`
}

// IdentityConfig contains configuration for the identity provider.
type IdentityConfig struct {
	// RefreshURL is the token-refresh endpoint.
	RefreshURL string `yaml:"refresh_url"`

	// QuotaURL is the GraphQL endpoint answering quota queries.
	QuotaURL string `yaml:"quota_url"`

	// APIKey is appended as the key query parameter on refresh calls.
	APIKey string `yaml:"api_key"`

	// RequestTimeout bounds each identity call. Default: 15s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// EgressConfig contains outbound proxy configuration.
type EgressConfig struct {
	// Proxies are outbound proxy specs. A bare host:port or
	// user:pass@host:port defaults to SOCKS5; http://, https://,
	// socks5:// and socks5h:// schemes pass through.
	Proxies []string `yaml:"proxies"`

	// IncludeDirect appends a direct (no proxy) route after the proxies.
	// Default: true
	IncludeDirect bool `yaml:"include_direct"`

	// ConnectTimeout bounds TCP/TLS setup per attempt. Default: 15s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// UpstreamConfig contains configuration for the upstream agent exchange.
type UpstreamConfig struct {
	// URL is the upstream agent endpoint accepting encoded packets.
	URL string `yaml:"url"`

	// HeartbeatTimeout abandons a stream producing no frame within this
	// window. Default: 60s
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`

	// ClientVersion, OSCategory, OSName and OSVersion populate the
	// client identification headers. Defaults match the current stable
	// client.
	ClientVersion string `yaml:"client_version"`
	OSCategory    string `yaml:"os_category"`
	OSName        string `yaml:"os_name"`
	OSVersion     string `yaml:"os_version"`
}

// FailoverConfig contains the retry ladder bounds.
type FailoverConfig struct {
	// CredentialAttempts bounds the outer retry loop. Default: 5
	CredentialAttempts int `yaml:"credential_attempts"`

	// RouteAttempts bounds route rotation per credential. Default: 3
	RouteAttempts int `yaml:"route_attempts"`

	// InitialBackoff is the first delay between route attempts.
	// Default: 200ms
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the delay between route attempts. Default: 3s
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// ModelsConfig lists the model ids exposed through the OpenAI surface.
type ModelsConfig struct {
	// Catalog is the model list served by GET /v1/models and accepted by
	// chat completions. Unknown requested models fall back to Default.
	Catalog []string `yaml:"catalog"`

	// Default is the model id used when a request names no known model.
	// Default: the first catalog entry.
	Default string `yaml:"default"`
}

// DedupConfig contains the duplicate-request cache settings.
type DedupConfig struct {
	// Enabled turns the unary duplicate-request cache on. Default: true
	Enabled bool `yaml:"enabled"`

	// Window is how long a cached response answers an identical request.
	// Default: 5s
	Window time.Duration `yaml:"window"`

	// MaxEntries bounds the cache. Default: 100
	MaxEntries int `yaml:"max_entries"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// Redact enables masking of bearer tokens, refresh tokens and
	// credential emails in log output. Default: true
	Redact bool `yaml:"redact"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled turns the Prometheus endpoint on. Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the scrape endpoint path. Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name. Default: "charon"
	Namespace string `yaml:"namespace"`
}
