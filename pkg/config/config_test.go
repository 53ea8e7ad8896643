package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
upstream:
  url: "https://agent.example.com/api"
`

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q, want %q", cfg.Server.ListenAddress, DefaultListenAddress)
	}
	if cfg.Pool.LockTimeout != 3*time.Second {
		t.Errorf("LockTimeout = %v, want 3s", cfg.Pool.LockTimeout)
	}
	if cfg.Pool.StaleAfter != 30*24*time.Hour {
		t.Errorf("StaleAfter = %v, want 720h", cfg.Pool.StaleAfter)
	}
	if cfg.Pool.CreditRefreshSchedule != "@every 10m" {
		t.Errorf("CreditRefreshSchedule = %q, want @every 10m", cfg.Pool.CreditRefreshSchedule)
	}
	if !cfg.Egress.IncludeDirect {
		t.Error("IncludeDirect should default to true")
	}
	if !cfg.Dedup.Enabled {
		t.Error("Dedup.Enabled should default to true")
	}
	if !cfg.Telemetry.Logging.Redact {
		t.Error("Logging.Redact should default to true")
	}
	if cfg.Models.Default != "auto" {
		t.Errorf("Models.Default = %q, want auto", cfg.Models.Default)
	}
	if cfg.Failover.CredentialAttempts != 5 || cfg.Failover.RouteAttempts != 3 {
		t.Errorf("failover bounds = %d/%d, want 5/3",
			cfg.Failover.CredentialAttempts, cfg.Failover.RouteAttempts)
	}
}

func TestLoadConfigMinimal(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Upstream.URL != "https://agent.example.com/api" {
		t.Errorf("URL = %q", cfg.Upstream.URL)
	}
	// Everything else falls back to defaults.
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Upstream.HeartbeatTimeout != time.Minute {
		t.Errorf("HeartbeatTimeout = %v", cfg.Upstream.HeartbeatTimeout)
	}
}

func TestLoadConfigExplicitFalseSurvives(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
dedup:
  enabled: false
telemetry:
  logging:
    redact: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Dedup.Enabled {
		t.Error("explicit dedup.enabled=false was overridden")
	}
	if cfg.Telemetry.Logging.Redact {
		t.Error("explicit redact=false was overridden")
	}
}

func TestLoadConfigMissingUpstreamFails(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "127.0.0.1:9000"
`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error for missing upstream.url")
	}
	if !strings.Contains(err.Error(), "upstream.url") {
		t.Errorf("error %q does not name upstream.url", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Upstream.URL = ""
	cfg.Server.ListenAddress = "not-an-address"
	cfg.Pool.SweepSchedule = "often"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("error type %T, want ValidationError", err)
	}
	if len(verr.Errors) < 3 {
		t.Errorf("collected %d errors, want at least 3: %v", len(verr.Errors), verr)
	}
}

func TestValidateEgressNoRoute(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Upstream.URL = "https://agent.example.com/api"
	cfg.Egress.IncludeDirect = false

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "egress.include_direct") {
		t.Errorf("expected no-egress-route error, got %v", err)
	}
}

func TestValidateBadProxySpec(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Upstream.URL = "https://agent.example.com/api"
	cfg.Egress.Proxies = []string{"ftp://bad.example.com:21"}

	if err := Validate(cfg); err == nil {
		t.Error("expected error for unsupported proxy scheme")
	}
}

func TestValidateModelDefaultMustBeInCatalog(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Upstream.URL = "https://agent.example.com/api"
	cfg.Models.Default = "phantom-model"

	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "models.default") {
		t.Errorf("expected models.default error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	t.Setenv("CHARON_SERVER_LISTEN_ADDRESS", "0.0.0.0:9999")
	t.Setenv("CHARON_POOL_LEASE_TTL", "45m")
	t.Setenv("CHARON_EGRESS_PROXIES", "10.0.0.1:1080, user:pass@10.0.0.2:1080")
	t.Setenv("CHARON_DEDUP_ENABLED", "false")
	t.Setenv("CHARON_FAILOVER_CREDENTIAL_ATTEMPTS", "7")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides: %v", err)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9999" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Pool.LeaseTTL != 45*time.Minute {
		t.Errorf("LeaseTTL = %v", cfg.Pool.LeaseTTL)
	}
	if len(cfg.Egress.Proxies) != 2 {
		t.Errorf("Proxies = %v", cfg.Egress.Proxies)
	}
	if cfg.Dedup.Enabled {
		t.Error("CHARON_DEDUP_ENABLED=false not applied")
	}
	if cfg.Failover.CredentialAttempts != 7 {
		t.Errorf("CredentialAttempts = %d", cfg.Failover.CredentialAttempts)
	}
}

func TestEnvOverrideInvalidValueFailsValidation(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	t.Setenv("CHARON_SERVER_LISTEN_ADDRESS", "no-port-here")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("expected validation failure after bad override")
	}
}

func TestSetAndGetConfig(t *testing.T) {
	old := GetConfig()
	defer SetConfig(old)

	cfg := DefaultConfig()
	cfg.Upstream.URL = "https://agent.example.com/api"
	SetConfig(cfg)

	if got := GetConfig(); got != cfg {
		t.Error("GetConfig did not return the set instance")
	}
}
