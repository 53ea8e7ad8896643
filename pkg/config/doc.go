// Package config provides configuration management for Charon.
//
// This package handles loading, validating, and managing configuration
// from YAML files with environment variable overrides. It provides a
// type-safe configuration system with validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CHARON_SECTION_FIELD.
// For example:
//
//   - CHARON_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - CHARON_UPSTREAM_URL overrides upstream.url
//   - CHARON_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based
// configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later
// overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
// For application-wide configuration access, use the singleton pattern:
//
//	// At application startup
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Anywhere in the application
//	cfg := config.GetConfig()
//	fmt.Println(cfg.Server.ListenAddress)
//
// For testing, prefer dependency injection with explicit Config instances
// rather than the global singleton.
//
// # Hot Reload
//
// A Watcher can observe the configuration file and swap the singleton on
// change. Components that read tuning knobs through GetConfig per use
// (pool timing, dedup window, failover bounds) pick new values up
// without a restart; listen addresses and storage paths do not.
//
// # Validation
//
// All configuration is validated automatically during loading, with
// field paths in the messages:
//
//	configuration validation failed with 2 errors:
//	  - upstream.url: must not be empty
//	  - pool.sweep_schedule: invalid cron expression "often"
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	server:
//	  listen_address: "127.0.0.1:8000"
//
//	upstream:
//	  url: "https://app.example.com/ai/multi-agent"
//
//	identity:
//	  refresh_url: "https://securetoken.example.com/v1/token"
//	  api_key: "${IDENTITY_API_KEY}"
//
//	egress:
//	  proxies:
//	    - "user:pass@203.0.113.7:1080"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//
// # Thread Safety
//
// All configuration access is thread-safe. The singleton uses read-write
// locks to allow concurrent reads while protecting reload swaps.
package config
