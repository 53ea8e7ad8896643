package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"heliox-hq/charon/pkg/cli"
	"heliox-hq/charon/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file, apply defaults and environment
overrides, and report every validation error at once.

Examples:
  # Validate the default config
  charon validate

  # Validate a specific file
  charon validate --config /etc/charon/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var valErr config.ValidationError
		if errors.As(err, &valErr) {
			fmt.Printf("✗ Configuration invalid (%d errors):\n", len(valErr.Errors))
			for _, fe := range valErr.Errors {
				fmt.Printf("  - %s: %s\n", fe.Field, fe.Message)
			}
			return cli.NewConfigError("", "validation failed")
		}
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  listen address: %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  credential db:  %s\n", cfg.Pool.DatabasePath)
	fmt.Printf("  upstream:       %s\n", cfg.Upstream.URL)
	fmt.Printf("  models:         %d in catalog, default %q\n",
		len(cfg.Models.Catalog), cfg.Models.Default)
	return nil
}
