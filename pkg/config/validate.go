package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"heliox-hq/charon/pkg/egress"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g.,
	// "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It implements the error interface and provides access
// to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a
// ValidationError if any validation rules fail. All validation errors
// are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validatePool(&cfg.Pool)...)
	errs = append(errs, validateIdentity(&cfg.Identity)...)
	errs = append(errs, validateEgress(&cfg.Egress)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateFailover(&cfg.Failover)...)
	errs = append(errs, validateModels(&cfg.Models)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(c *ServerConfig) []FieldError {
	var errs []FieldError
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid address %q: must be host:port", c.ListenAddress),
		})
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "must not be negative"})
	}
	if c.MaxRequestBytes <= 0 {
		errs = append(errs, FieldError{Field: "server.max_request_bytes", Message: "must be positive"})
	}
	return errs
}

func validatePool(c *PoolConfig) []FieldError {
	var errs []FieldError
	if c.DatabasePath == "" {
		errs = append(errs, FieldError{Field: "pool.database_path", Message: "must not be empty"})
	}
	if c.LockTimeout <= 0 {
		errs = append(errs, FieldError{Field: "pool.lock_timeout", Message: "must be positive"})
	}
	if c.LeaseTTL <= 0 {
		errs = append(errs, FieldError{Field: "pool.lease_ttl", Message: "must be positive"})
	}
	if c.StaleAfter <= 0 {
		errs = append(errs, FieldError{Field: "pool.stale_after", Message: "must be positive"})
	}
	errs = append(errs, validateCron("pool.sweep_schedule", c.SweepSchedule)...)
	errs = append(errs, validateCron("pool.credit_refresh_schedule", c.CreditRefreshSchedule)...)
	errs = append(errs, validateCron("pool.cleanup_schedule", c.CleanupSchedule)...)
	return errs
}

func validateCron(field, spec string) []FieldError {
	if spec == "" {
		return []FieldError{{Field: field, Message: "must not be empty"}}
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return []FieldError{{Field: field, Message: fmt.Sprintf("invalid cron expression %q: %v", spec, err)}}
	}
	return nil
}

func validateIdentity(c *IdentityConfig) []FieldError {
	var errs []FieldError
	errs = append(errs, validateOptionalURL("identity.refresh_url", c.RefreshURL)...)
	errs = append(errs, validateOptionalURL("identity.quota_url", c.QuotaURL)...)
	if c.RequestTimeout <= 0 {
		errs = append(errs, FieldError{Field: "identity.request_timeout", Message: "must be positive"})
	}
	return errs
}

func validateOptionalURL(field, raw string) []FieldError {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return []FieldError{{Field: field, Message: fmt.Sprintf("invalid URL %q", raw)}}
	}
	return nil
}

func validateEgress(c *EgressConfig) []FieldError {
	var errs []FieldError
	for i, spec := range c.Proxies {
		if _, err := egress.Normalize(spec); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("egress.proxies[%d]", i),
				Message: err.Error(),
			})
		}
	}
	if len(c.Proxies) == 0 && !c.IncludeDirect {
		errs = append(errs, FieldError{
			Field:   "egress.include_direct",
			Message: "no proxies configured and direct route disabled: no egress route exists",
		})
	}
	return errs
}

func validateUpstream(c *UpstreamConfig) []FieldError {
	var errs []FieldError
	if c.URL == "" {
		errs = append(errs, FieldError{Field: "upstream.url", Message: "must not be empty"})
	} else {
		errs = append(errs, validateOptionalURL("upstream.url", c.URL)...)
	}
	if c.HeartbeatTimeout <= 0 {
		errs = append(errs, FieldError{Field: "upstream.heartbeat_timeout", Message: "must be positive"})
	}
	return errs
}

func validateFailover(c *FailoverConfig) []FieldError {
	var errs []FieldError
	if c.CredentialAttempts <= 0 {
		errs = append(errs, FieldError{Field: "failover.credential_attempts", Message: "must be positive"})
	}
	if c.RouteAttempts <= 0 {
		errs = append(errs, FieldError{Field: "failover.route_attempts", Message: "must be positive"})
	}
	if c.MaxBackoff < c.InitialBackoff {
		errs = append(errs, FieldError{Field: "failover.max_backoff", Message: "must not be less than initial_backoff"})
	}
	return errs
}

func validateModels(c *ModelsConfig) []FieldError {
	var errs []FieldError
	if len(c.Catalog) == 0 {
		errs = append(errs, FieldError{Field: "models.catalog", Message: "must list at least one model"})
		return errs
	}
	found := false
	for _, m := range c.Catalog {
		if m == c.Default {
			found = true
			break
		}
	}
	if !found {
		errs = append(errs, FieldError{
			Field:   "models.default",
			Message: fmt.Sprintf("%q is not in the catalog", c.Default),
		})
	}
	return errs
}

func validateTelemetry(c *TelemetryConfig) []FieldError {
	var errs []FieldError
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q: must be debug, info, warn or error", c.Logging.Level),
		})
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q: must be json or text", c.Logging.Format),
		})
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	return errs
}
