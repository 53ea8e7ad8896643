package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// File content is unmarshaled over the defaults, then validated.
// Environment variables are not applied; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	// A file may null out sections; refill anything zeroed.
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow
// the naming convention CHARON_SECTION_FIELD (e.g.
// CHARON_SERVER_LISTEN_ADDRESS) and always take precedence over
// file-based configuration.
//
// The loading sequence is:
//  1. Defaults
//  2. YAML file
//  3. Environment variable overrides
//  4. Validation
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides using the
// CHARON_SECTION_FIELD format.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("CHARON_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("CHARON_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("CHARON_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("CHARON_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("CHARON_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envString("CHARON_SERVER_API_KEY", &cfg.Server.APIKey)
	envBool("CHARON_SERVER_ENABLE_CORS", &cfg.Server.EnableCORS)

	// Pool overrides
	envString("CHARON_POOL_DATABASE_PATH", &cfg.Pool.DatabasePath)
	envDuration("CHARON_POOL_LOCK_TIMEOUT", &cfg.Pool.LockTimeout)
	envDuration("CHARON_POOL_LEASE_TTL", &cfg.Pool.LeaseTTL)
	envDuration("CHARON_POOL_CACHE_TTL", &cfg.Pool.CacheTTL)
	envDuration("CHARON_POOL_REFRESH_BUFFER", &cfg.Pool.RefreshBuffer)
	envDuration("CHARON_POOL_REFRESH_COOLDOWN", &cfg.Pool.RefreshCooldown)
	envString("CHARON_POOL_SWEEP_SCHEDULE", &cfg.Pool.SweepSchedule)
	envString("CHARON_POOL_CREDIT_REFRESH_SCHEDULE", &cfg.Pool.CreditRefreshSchedule)
	envString("CHARON_POOL_CLEANUP_SCHEDULE", &cfg.Pool.CleanupSchedule)
	envDuration("CHARON_POOL_STALE_AFTER", &cfg.Pool.StaleAfter)

	// Identity overrides
	envString("CHARON_IDENTITY_REFRESH_URL", &cfg.Identity.RefreshURL)
	envString("CHARON_IDENTITY_QUOTA_URL", &cfg.Identity.QuotaURL)
	envString("CHARON_IDENTITY_API_KEY", &cfg.Identity.APIKey)
	envDuration("CHARON_IDENTITY_REQUEST_TIMEOUT", &cfg.Identity.RequestTimeout)

	// Egress overrides
	if val := os.Getenv("CHARON_EGRESS_PROXIES"); val != "" {
		var proxies []string
		for _, p := range strings.Split(val, ",") {
			if p = strings.TrimSpace(p); p != "" {
				proxies = append(proxies, p)
			}
		}
		cfg.Egress.Proxies = proxies
	}
	envBool("CHARON_EGRESS_INCLUDE_DIRECT", &cfg.Egress.IncludeDirect)
	envDuration("CHARON_EGRESS_CONNECT_TIMEOUT", &cfg.Egress.ConnectTimeout)

	// Upstream overrides
	envString("CHARON_UPSTREAM_URL", &cfg.Upstream.URL)
	envDuration("CHARON_UPSTREAM_HEARTBEAT_TIMEOUT", &cfg.Upstream.HeartbeatTimeout)
	envString("CHARON_UPSTREAM_CLIENT_VERSION", &cfg.Upstream.ClientVersion)

	// Failover overrides
	envInt("CHARON_FAILOVER_CREDENTIAL_ATTEMPTS", &cfg.Failover.CredentialAttempts)
	envInt("CHARON_FAILOVER_ROUTE_ATTEMPTS", &cfg.Failover.RouteAttempts)
	envDuration("CHARON_FAILOVER_INITIAL_BACKOFF", &cfg.Failover.InitialBackoff)
	envDuration("CHARON_FAILOVER_MAX_BACKOFF", &cfg.Failover.MaxBackoff)

	// Models overrides
	envString("CHARON_MODELS_DEFAULT", &cfg.Models.Default)

	// Dedup overrides
	envBool("CHARON_DEDUP_ENABLED", &cfg.Dedup.Enabled)
	envDuration("CHARON_DEDUP_WINDOW", &cfg.Dedup.Window)

	// Telemetry overrides
	envString("CHARON_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("CHARON_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("CHARON_TELEMETRY_LOGGING_REDACT", &cfg.Telemetry.Logging.Redact)
	envBool("CHARON_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("CHARON_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}
