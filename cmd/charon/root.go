package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "charon",
	Short: "Charon - OpenAI-compatible agent protocol gateway",
	Long: `Charon exposes a proprietary binary-framed agent service through the
OpenAI chat-completions API.

It manages a pool of leasable upstream credentials, rotates egress
routes on failure, and translates the upstream event stream into
streaming or unary OpenAI responses.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
