package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxRequestBytes = 10 * 1024 * 1024

	// Pool defaults
	DefaultDatabasePath          = "charon.db"
	DefaultLockTimeout           = 3 * time.Second
	DefaultLeaseTTL              = 10 * time.Minute
	DefaultCacheTTL              = 30 * time.Second
	DefaultRefreshBuffer         = 10 * time.Minute
	DefaultRefreshCooldown       = time.Hour
	DefaultSweepSchedule         = "@every 1m"
	DefaultCreditRefreshSchedule = "@every 10m"
	DefaultCleanupSchedule       = "0 4 * * *"
	DefaultStaleAfter            = 30 * 24 * time.Hour

	// Identity defaults
	DefaultIdentityTimeout = 15 * time.Second

	// Egress defaults
	DefaultConnectTimeout = 15 * time.Second

	// Upstream defaults
	DefaultHeartbeatTimeout = 60 * time.Second

	// Failover defaults
	DefaultCredentialAttempts = 5
	DefaultRouteAttempts      = 3
	DefaultInitialBackoff     = 200 * time.Millisecond
	DefaultMaxBackoff         = 3 * time.Second

	// Dedup defaults
	DefaultDedupWindow     = 5 * time.Second
	DefaultDedupMaxEntries = 100

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "charon"
)

// DefaultModelCatalog is served when the configuration names no models.
var DefaultModelCatalog = []string{
	"auto",
	"agent-default",
	"agent-planning",
	"agent-coding",
}

// DefaultConfig returns a configuration with every field at its default.
// Loading unmarshals file content over this value, so boolean fields that
// default to true survive being absent from the file.
func DefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			EnableCORS: true,
		},
		Egress: EgressConfig{
			IncludeDirect: true,
		},
		Dedup: DedupConfig{
			Enabled: true,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{Redact: true},
			Metrics: MetricsConfig{Enabled: true},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults. Boolean fields
// are left alone; their defaults come from DefaultConfig.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxRequestBytes == 0 {
		cfg.Server.MaxRequestBytes = DefaultMaxRequestBytes
	}

	if cfg.Pool.DatabasePath == "" {
		cfg.Pool.DatabasePath = DefaultDatabasePath
	}
	if cfg.Pool.LockTimeout == 0 {
		cfg.Pool.LockTimeout = DefaultLockTimeout
	}
	if cfg.Pool.LeaseTTL == 0 {
		cfg.Pool.LeaseTTL = DefaultLeaseTTL
	}
	if cfg.Pool.CacheTTL == 0 {
		cfg.Pool.CacheTTL = DefaultCacheTTL
	}
	if cfg.Pool.RefreshBuffer == 0 {
		cfg.Pool.RefreshBuffer = DefaultRefreshBuffer
	}
	if cfg.Pool.RefreshCooldown == 0 {
		cfg.Pool.RefreshCooldown = DefaultRefreshCooldown
	}
	if cfg.Pool.SweepSchedule == "" {
		cfg.Pool.SweepSchedule = DefaultSweepSchedule
	}
	if cfg.Pool.CreditRefreshSchedule == "" {
		cfg.Pool.CreditRefreshSchedule = DefaultCreditRefreshSchedule
	}
	if cfg.Pool.CleanupSchedule == "" {
		cfg.Pool.CleanupSchedule = DefaultCleanupSchedule
	}
	if cfg.Pool.StaleAfter == 0 {
		cfg.Pool.StaleAfter = DefaultStaleAfter
	}

	if cfg.Identity.RequestTimeout == 0 {
		cfg.Identity.RequestTimeout = DefaultIdentityTimeout
	}

	if cfg.Egress.ConnectTimeout == 0 {
		cfg.Egress.ConnectTimeout = DefaultConnectTimeout
	}

	if cfg.Upstream.HeartbeatTimeout == 0 {
		cfg.Upstream.HeartbeatTimeout = DefaultHeartbeatTimeout
	}

	if cfg.Failover.CredentialAttempts == 0 {
		cfg.Failover.CredentialAttempts = DefaultCredentialAttempts
	}
	if cfg.Failover.RouteAttempts == 0 {
		cfg.Failover.RouteAttempts = DefaultRouteAttempts
	}
	if cfg.Failover.InitialBackoff == 0 {
		cfg.Failover.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.Failover.MaxBackoff == 0 {
		cfg.Failover.MaxBackoff = DefaultMaxBackoff
	}

	if len(cfg.Models.Catalog) == 0 {
		cfg.Models.Catalog = append([]string(nil), DefaultModelCatalog...)
	}
	if cfg.Models.Default == "" {
		cfg.Models.Default = cfg.Models.Catalog[0]
	}

	if cfg.Dedup.Window == 0 {
		cfg.Dedup.Window = DefaultDedupWindow
	}
	if cfg.Dedup.MaxEntries == 0 {
		cfg.Dedup.MaxEntries = DefaultDedupMaxEntries
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}
