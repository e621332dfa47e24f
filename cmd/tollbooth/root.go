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
	Use:   "tollbooth",
	Short: "Tollbooth - policy decision core for agent actions",
	Long: `Tollbooth gates agent actions through a policy decision core.

Every requested action is evaluated against togglable rules and a
load-adaptive protection level, and the outcome is recorded as a signed,
immutable receipt:

  - Rule-based gating of writes (approval requirements, read-only mode)
  - Load-derived protection levels from smoothed arrival/service rates
  - HMAC-signed receipts for every decision and rule change
  - SQLite-backed receipt ledger with query and verification APIs`,
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
