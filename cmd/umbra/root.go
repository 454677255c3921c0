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
	Use:   "umbra",
	Short: "Umbra - PHI/PII redaction decision engine",
	Long: `Umbra is a redaction decision engine for documents with already-detected
candidate spans. Detection stays upstream; Umbra decides what survives.

It refines each candidate's confidence with context modifier rules, resolves
overlapping candidates through disambiguation, runs sandboxed plugin hooks
around every stage, and replaces the surviving spans with type tokens.
Every pass leaves an audit record.

For more information, visit: https://github.com/umbra-hq/umbra`,
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
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
