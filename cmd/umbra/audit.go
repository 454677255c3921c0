package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"umbra-hq/umbra/pkg/audit"
	"umbra-hq/umbra/pkg/cli"
	"umbra-hq/umbra/pkg/config"
)

var auditFlags struct {
	documentID string
	outcome    string
	since      string
	until      string
	limit      int
	offset     int
	format     string
	output     string
	maxAge     time.Duration
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit store",
	Long: `Query and prune redaction audit records.

Audit records carry outcome and span counts per document pass; document
text never enters the store.

Subcommands:
  query   - Query audit records with filters
  prune   - Delete records older than a cutoff

Examples:
  # Last 20 redacted documents
  umbra audit query --outcome redacted --limit 20

  # All passes for one document
  umbra audit query --document-id doc-42

  # Export a day to CSV
  umbra audit query --since 2026-08-28T00:00:00Z --until 2026-08-29T00:00:00Z --format csv

  # Drop everything older than 30 days
  umbra audit prune --max-age 720h`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit records",
	Long: `Query audit records with filters.

Timestamps use RFC3339 ("2026-08-29T00:00:00Z"). --since is inclusive,
--until exclusive. Results come back newest first.`,
	RunE: queryAudit,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old audit records",
	Long:  `Delete audit records older than --max-age, measured from now.`,
	RunE:  pruneAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditPruneCmd)

	auditQueryCmd.Flags().StringVar(&auditFlags.documentID, "document-id", "", "filter by document ID")
	auditQueryCmd.Flags().StringVar(&auditFlags.outcome, "outcome", "", "filter by outcome (redacted, short_circuited, error)")
	auditQueryCmd.Flags().StringVar(&auditFlags.since, "since", "", "records at or after this RFC3339 timestamp")
	auditQueryCmd.Flags().StringVar(&auditFlags.until, "until", "", "records before this RFC3339 timestamp")
	auditQueryCmd.Flags().IntVar(&auditFlags.limit, "limit", 100, "max results")
	auditQueryCmd.Flags().IntVar(&auditFlags.offset, "offset", 0, "pagination offset")
	auditQueryCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json, csv")
	auditQueryCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "output file (default: stdout)")

	auditPruneCmd.Flags().DurationVar(&auditFlags.maxAge, "max-age", 0, "delete records older than this (required)")
	auditPruneCmd.MarkFlagRequired("max-age")
}

// openAuditStorage opens the configured audit backend for offline use.
// The memory backend is rejected: it holds nothing between processes.
func openAuditStorage(cfg *config.Config) (audit.Storage, error) {
	if !cfg.Audit.Enabled {
		return nil, fmt.Errorf("auditing is disabled in configuration")
	}
	if cfg.Audit.Backend != "sqlite" {
		return nil, fmt.Errorf("audit backend %q holds no persistent records; only sqlite can be queried offline", cfg.Audit.Backend)
	}

	logger, err := buildLogger(cfg, true, os.Stderr)
	if err != nil {
		return nil, err
	}
	return audit.NewSQLiteStorage(&audit.SQLiteConfig{
		Path:        cfg.Audit.SQLite.Path,
		WALMode:     cfg.Audit.SQLite.WALMode,
		BusyTimeout: cfg.Audit.SQLite.BusyTimeout,
	}, logger)
}

func queryAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	storage, err := openAuditStorage(cfg)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	defer storage.Close()

	query := audit.Query{
		DocumentID: auditFlags.documentID,
		Outcome:    auditFlags.outcome,
		Limit:      auditFlags.limit,
		Offset:     auditFlags.offset,
	}
	if auditFlags.since != "" {
		t, err := time.Parse(time.RFC3339, auditFlags.since)
		if err != nil {
			return cli.NewConfigError("since", err.Error())
		}
		query.Since = &t
	}
	if auditFlags.until != "" {
		t, err := time.Parse(time.RFC3339, auditFlags.until)
		if err != nil {
			return cli.NewConfigError("until", err.Error())
		}
		query.Until = &t
	}

	ctx := context.Background()
	records, err := storage.Query(ctx, &query)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}

	out := os.Stdout
	if auditFlags.output != "" {
		f, err := os.Create(auditFlags.output)
		if err != nil {
			return cli.NewCommandError("audit query", err)
		}
		defer f.Close()
		out = f
	}

	switch cli.OutputFormat(auditFlags.format) {
	case cli.FormatJSON:
		return cli.NewFormatter(cli.FormatJSON).FormatTo(out, records)
	case cli.FormatCSV:
		formatter := &cli.CSVFormatter{Headers: []string{
			"id", "timestamp", "document_id", "outcome",
			"span_count", "redacted_count", "short_circuited", "duration_ms",
		}}
		rows := make([][]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, []string{
				r.ID.String(),
				r.Timestamp.Format(time.RFC3339Nano),
				r.DocumentID,
				r.Outcome,
				strconv.Itoa(r.SpanCount),
				strconv.Itoa(r.RedactedCount),
				strconv.FormatBool(r.ShortCircuited),
				strconv.FormatInt(r.Duration.Milliseconds(), 10),
			})
		}
		return formatter.FormatTo(out, rows)
	default:
		for _, r := range records {
			fmt.Fprintf(out, "%s  %-16s %-15s spans=%d redacted=%d %s\n",
				r.Timestamp.Format(time.RFC3339),
				r.Outcome,
				r.DocumentID,
				r.SpanCount,
				r.RedactedCount,
				r.Duration.Round(time.Millisecond),
			)
		}
		fmt.Fprintf(out, "\n%d records\n", len(records))
		return nil
	}
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	storage, err := openAuditStorage(cfg)
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	defer storage.Close()

	cutoff := time.Now().Add(-auditFlags.maxAge)
	deleted, err := storage.Prune(context.Background(), cutoff)
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}

	fmt.Printf("✓ Deleted %d records older than %s\n", deleted, cutoff.Format(time.RFC3339))
	return nil
}
