package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"heliox-hq/charon/pkg/bridge"
	"heliox-hq/charon/pkg/cli"
	"heliox-hq/charon/pkg/config"
	"heliox-hq/charon/pkg/egress"
	"heliox-hq/charon/pkg/failover"
	"heliox-hq/charon/pkg/identity"
	"heliox-hq/charon/pkg/pool"
	"heliox-hq/charon/pkg/pool/storage"
	"heliox-hq/charon/pkg/server"
	"heliox-hq/charon/pkg/telemetry/health"
	"heliox-hq/charon/pkg/telemetry/logging"
	"heliox-hq/charon/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	watchConfig   bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Charon gateway",
	Long: `Start the gateway with the specified configuration.

The server listens on the configured address and serves the OpenAI
chat-completions surface plus the credential pool API, driving each
exchange through the failover orchestrator against the upstream agent
service.

Examples:
  # Start with default config
  charon run

  # Start with custom config
  charon run --config /etc/charon/config.yaml

  # Override listen address
  charon run --listen 0.0.0.0:8000

  # Reload egress and model settings on config edits
  charon run --watch-config

  # Validate config without starting the server
  charon run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.watchConfig, "watch-config", false, "reload configuration on file changes")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Redact:    cfg.Telemetry.Logging.Redact,
	}); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	printBanner(cfg)

	store, err := storage.NewSQLiteStore(cfg.Pool.DatabasePath)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("open credential store: %w", err))
	}
	defer store.Close()
	fmt.Printf("✓ Credential store opened (%s)\n", cfg.Pool.DatabasePath)

	idClient := identity.NewClient(identity.Config{
		RefreshURL: cfg.Identity.RefreshURL,
		QuotaURL:   cfg.Identity.QuotaURL,
		APIKey:     cfg.Identity.APIKey,
		Timeout:    cfg.Identity.RequestTimeout,
	})

	mgr := pool.NewManager(store, idClient, pool.Config{
		LockTimeout:     cfg.Pool.LockTimeout,
		CacheTTL:        cfg.Pool.CacheTTL,
		LeaseTTL:        cfg.Pool.LeaseTTL,
		RefreshBuffer:   cfg.Pool.RefreshBuffer,
		RefreshCooldown: cfg.Pool.RefreshCooldown,
		StaleAfter:      cfg.Pool.StaleAfter,
	})

	ctx, cancel := context.WithCancel(cli.SetupSignalHandler())
	defer cancel()

	sweeper := pool.NewSweeper(mgr)
	if cfg.Pool.SweepSchedule != "" {
		sweeper.SweepSchedule = cfg.Pool.SweepSchedule
	}
	if cfg.Pool.CreditRefreshSchedule != "" {
		sweeper.CreditRefreshSchedule = cfg.Pool.CreditRefreshSchedule
	}
	if cfg.Pool.CleanupSchedule != "" {
		sweeper.CleanupSchedule = cfg.Pool.CleanupSchedule
	}
	if err := sweeper.Start(ctx); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("start pool sweeper: %w", err))
	}
	defer sweeper.Stop()

	rotator, err := egress.NewRotator(egress.Options{
		Proxies:        cfg.Egress.Proxies,
		IncludeDirect:  cfg.Egress.IncludeDirect,
		ConnectTimeout: cfg.Egress.ConnectTimeout,
	})
	if err != nil {
		return cli.NewConfigError("egress.proxies", err.Error())
	}
	fmt.Printf("✓ Egress routes configured (%d routes)\n", rotator.Len())

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	failoverCfg := failover.Config{
		CredentialAttempts: cfg.Failover.CredentialAttempts,
		RouteAttempts:      cfg.Failover.RouteAttempts,
		InitialBackoff:     cfg.Failover.InitialBackoff,
		MaxBackoff:         cfg.Failover.MaxBackoff,
	}
	if collector != nil {
		failoverCfg.OnRotation = func(outcome failover.Outcome) {
			switch outcome {
			case failover.OutcomeBanned:
				collector.RecordRotation(metrics.RotationBan)
			case failover.OutcomeQuotaExhausted:
				collector.RecordRotation(metrics.RotationQuota)
			default:
				collector.RecordRotation(metrics.RotationUpstream)
			}
		}
	}
	orch := failover.NewOrchestrator(mgr, rotator, failoverCfg)

	br := bridge.New(orch, bridge.Config{
		URL:              cfg.Upstream.URL,
		HeartbeatTimeout: cfg.Upstream.HeartbeatTimeout,
		ClientVersion:    cfg.Upstream.ClientVersion,
		OSCategory:       cfg.Upstream.OSCategory,
		OSName:           cfg.Upstream.OSName,
		OSVersion:        cfg.Upstream.OSVersion,
	})

	checker := health.New(0)
	checker.Register("pool", func(ctx context.Context) error {
		_, err := store.CountByStatus(ctx)
		return err
	})

	srv := server.New(cfg, server.Deps{
		Pool:      mgr,
		Bridge:    br,
		Collector: collector,
		Health:    checker,
	})

	if runFlags.watchConfig {
		watcher, err := config.NewWatcher(cfgFile)
		if err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		} else {
			go func() {
				// Reload updates the singleton; live components pick up
				// the sections they re-read per request.
				err := watcher.Watch(ctx, func(updated *config.Config) {
					config.SetConfig(updated)
					slog.Info("configuration reloaded", "path", cfgFile)
				})
				if err != nil && ctx.Err() == nil {
					slog.Warn("config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	fmt.Println()
	fmt.Printf("✓ Gateway listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a shutdown signal or context cancellation.
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Gateway stopped")
	return nil
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Charon v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	slog.Debug("model catalog", "models", len(cfg.Models.Catalog), "default", cfg.Models.Default)
	if len(cfg.Egress.Proxies) > 0 {
		slog.Debug("egress proxies configured", "count", len(cfg.Egress.Proxies))
	}
}
