package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"umbra-hq/umbra/pkg/cli"
	"umbra-hq/umbra/pkg/config"
	"umbra-hq/umbra/pkg/confidence"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load and validate the configuration file, including any modifier rule
file it references, without starting anything.

Examples:
  # Validate the default config.yaml
  umbra validate

  # Validate a specific file
  umbra validate --config /etc/umbra/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}
	fmt.Printf("✓ %s is valid\n", cfgFile)

	if cfg.Rules.Path != "" {
		registry, err := confidence.LoadRegistry(cfg.Rules.Path)
		if err != nil {
			return cli.NewConfigError("rules.path", err.Error())
		}
		fmt.Printf("✓ %s: %d modifiers\n", cfg.Rules.Path, len(registry.Modifiers()))
	}

	fmt.Printf("  server:          %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  disambiguation:  %s\n", cfg.Disambiguation.Strategy)
	fmt.Printf("  stream workers:  %d\n", cfg.Stream.Workers)
	if cfg.Audit.Enabled {
		fmt.Printf("  audit backend:   %s\n", cfg.Audit.Backend)
	} else {
		fmt.Println("  audit:           disabled")
	}
	return nil
}
