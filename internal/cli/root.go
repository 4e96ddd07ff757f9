// Package cli implements the wellops command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "wellops",
	Short: "Well operations service: look-ahead schedules, rentals, vendors",
	Long: `Wellops tracks look-ahead well schedules with automatic time cascading,
rental equipment movements across wells, vendor call reminders, and
company rental statements.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./wellops.yaml", "path to config file (YAML or JSON)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statementCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
