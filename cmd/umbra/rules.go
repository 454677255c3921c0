package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"umbra-hq/umbra/pkg/cli"
	"umbra-hq/umbra/pkg/confidence"
)

var rulesFlags struct {
	file   string
	dir    string
	format string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Work with confidence modifier rule files",
	Long: `Validate and inspect confidence modifier rule files.

Rule files are YAML lists of modifiers; each names a condition (regex,
preceding/following text, or window keywords) and an action (override,
adjust, or scale) applied to matching span confidences.

Subcommands:
  check   - Parse and compile rule files, reporting errors

Examples:
  # Check a single rule file
  umbra rules check --file rules.yaml

  # Check every rule file in a directory
  umbra rules check --dir rules/`,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate rule files",
	Long: `Parse rule files and compile every modifier, reporting anything the
engine would reject: unknown condition or action types, bad regexes,
out-of-range values.

Examples:
  # Check single file
  umbra rules check --file rules.yaml

  # JSON output for CI/CD
  umbra rules check --file rules.yaml --format json`,
	RunE: checkRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesCheckCmd)

	rulesCheckCmd.Flags().StringVarP(&rulesFlags.file, "file", "f", "", "rule file to validate")
	rulesCheckCmd.Flags().StringVarP(&rulesFlags.dir, "dir", "d", "", "directory of rule files")
	rulesCheckCmd.Flags().StringVar(&rulesFlags.format, "format", "text", "output format: text, json")
}

// RuleCheckResult is the validation outcome for one rule file.
type RuleCheckResult struct {
	File      string `json:"file"`
	Valid     bool   `json:"valid"`
	Modifiers int    `json:"modifiers"`
	Keywords  int    `json:"keywords"`
	Error     string `json:"error,omitempty"`
}

func checkRules(cmd *cobra.Command, args []string) error {
	if rulesFlags.file == "" && rulesFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	var files []string
	if rulesFlags.file != "" {
		files = append(files, rulesFlags.file)
	}
	if rulesFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(rulesFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list rule files: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no rule files found")
	}

	results := make([]RuleCheckResult, 0, len(files))
	failures := 0
	for _, file := range files {
		result := RuleCheckResult{File: file}
		registry, err := confidence.LoadRegistry(file)
		if err != nil {
			result.Error = err.Error()
			failures++
		} else {
			result.Valid = true
			result.Modifiers = len(registry.Modifiers())
			result.Keywords = registry.KeywordCount()
		}
		results = append(results, result)
	}

	if rulesFlags.format == "json" {
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Printf("✓ %s: %d modifiers, %d window keywords\n", r.File, r.Modifiers, r.Keywords)
			} else {
				fmt.Printf("✗ %s: %s\n", r.File, r.Error)
			}
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d rule files invalid", failures, len(files))
	}
	return nil
}
