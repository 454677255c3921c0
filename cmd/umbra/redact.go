package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"umbra-hq/umbra/pkg/cli"
	"umbra-hq/umbra/pkg/config"
	"umbra-hq/umbra/pkg/pipeline"
	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/server"
	"umbra-hq/umbra/pkg/span"
	"umbra-hq/umbra/pkg/stream"
)

var redactFlags struct {
	file    string
	spans   string
	batch   bool
	format  string
	output  string
	timeout time.Duration
}

var redactCmd = &cobra.Command{
	Use:   "redact",
	Short: "Redact documents without starting a server",
	Long: `Run documents through the redaction pipeline and print the result.

In single-document mode the text comes from --file or stdin, and candidate
spans come from a JSON file (--spans) or from enabled filter plugins.

In batch mode (--batch) the input is JSON Lines, one document per line:

  {"id": "doc-1", "text": "...", "spans": [...]}

Batch documents run through the supervised stream workers, so the
configured worker count, queue, and circuit breaker apply.

Examples:
  # Redact a file with detected spans
  umbra redact --file note.txt --spans spans.json

  # Redact stdin, JSON output
  cat note.txt | umbra redact --spans spans.json --format json

  # Batch-redact a JSONL corpus
  umbra redact --batch --file corpus.jsonl --output redacted.jsonl`,
	RunE: runRedact,
}

func init() {
	rootCmd.AddCommand(redactCmd)

	redactCmd.Flags().StringVarP(&redactFlags.file, "file", "f", "", "input file (default: stdin)")
	redactCmd.Flags().StringVar(&redactFlags.spans, "spans", "", "JSON file with candidate spans")
	redactCmd.Flags().BoolVar(&redactFlags.batch, "batch", false, "treat input as JSON Lines, one document per line")
	redactCmd.Flags().StringVar(&redactFlags.format, "format", "text", "output format: text, json")
	redactCmd.Flags().StringVarP(&redactFlags.output, "output", "o", "", "output file (default: stdout)")
	redactCmd.Flags().DurationVar(&redactFlags.timeout, "timeout", 5*time.Minute, "overall processing timeout")
}

// batchDocument is one JSON Lines input record.
type batchDocument struct {
	ID    string      `json:"id"`
	Text  string      `json:"text"`
	Spans []span.Span `json:"spans"`
}

func runRedact(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Logs go to stderr; stdout carries the redaction output.
	cfg.Telemetry.Logging.Format = "text"
	logger, err := buildLogger(cfg, true, os.Stderr)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	// Ctrl-C cancels an in-flight batch instead of leaving half-written output.
	sigCtx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, redactFlags.timeout)
	defer cancel()

	plugins := buildPlugins(ctx, cfg, logger)
	confEngine, err := buildConfidence(cfg, logger)
	if err != nil {
		return cli.NewConfigError("rules", err.Error())
	}
	disambEngine, obsStore, err := buildDisambiguation(ctx, cfg, logger)
	if err != nil {
		return cli.NewConfigError("disambiguation", err.Error())
	}
	if obsStore != nil {
		defer obsStore.Close()
	}

	pipe, err := buildPipeline(cfg, plugins, confEngine, disambEngine, nil, nil, nil, logger)
	if err != nil {
		return cli.NewCommandError("redact", err)
	}

	input := os.Stdin
	if redactFlags.file != "" {
		f, err := os.Open(redactFlags.file)
		if err != nil {
			return cli.NewInputError(redactFlags.file, err)
		}
		defer f.Close()
		input = f
	}

	out := os.Stdout
	if redactFlags.output != "" {
		f, err := os.Create(redactFlags.output)
		if err != nil {
			return cli.NewCommandError("redact", err)
		}
		defer f.Close()
		out = f
	}

	if redactFlags.batch {
		return redactBatch(ctx, cfg, pipe, input, out, logger)
	}
	return redactSingle(ctx, pipe, input, out)
}

func redactSingle(ctx context.Context, pipe *pipeline.Pipeline, input io.Reader, out io.Writer) error {
	text, err := io.ReadAll(input)
	if err != nil {
		return cli.NewCommandError("redact", err)
	}

	doc := &plugin.Document{Text: string(text)}
	if redactFlags.spans != "" {
		data, err := os.ReadFile(redactFlags.spans)
		if err != nil {
			return cli.NewInputError(redactFlags.spans, err)
		}
		var spans []span.Span
		if err := json.Unmarshal(data, &spans); err != nil {
			return cli.NewInputError(redactFlags.spans, err)
		}
		pipeline.AttachSpans(doc, spans)
	}

	result, err := pipe.Process(ctx, doc)
	if err != nil {
		return cli.NewCommandError("redact", err)
	}

	if redactFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(out, toResponse(result))
	}
	_, err = fmt.Fprintln(out, result.RedactedText)
	return err
}

// redactBatch runs the JSONL corpus through the stream workers. Output
// lines keep input order-independence: each carries its document ID.
func redactBatch(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline, input io.Reader, out io.Writer, logger *slog.Logger) error {
	var docs []*plugin.Document
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var bd batchDocument
		if err := json.Unmarshal(raw, &bd); err != nil {
			return cli.NewInputError(redactFlags.file, fmt.Errorf("line %d: %w", line, err))
		}
		doc := &plugin.Document{ID: bd.ID, Text: bd.Text}
		if len(bd.Spans) > 0 {
			pipeline.AttachSpans(doc, bd.Spans)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return cli.NewCommandError("redact", err)
	}
	if len(docs) == 0 {
		return nil
	}

	runner, err := stream.NewRunner(stream.Config{
		Workers:    cfg.Stream.Workers,
		Queue:      cfg.Stream.Queue,
		Breaker:    cfg.Stream.Breaker,
		Supervisor: cfg.Stream.Supervisor,
	}, pipe, nil, logger)
	if err != nil {
		return cli.NewCommandError("redact", err)
	}
	if err := runner.Start(ctx); err != nil {
		return cli.NewCommandError("redact", err)
	}
	defer runner.Stop()

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(int64(len(docs)))

	go func() {
		for _, doc := range docs {
			for !runner.Submit(doc) {
				select {
				case <-ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
				}
			}
		}
	}()

	encoder := json.NewEncoder(out)
	failed := 0
	for done := 0; done < len(docs); done++ {
		select {
		case <-ctx.Done():
			progress.Error(ctx.Err())
			return cli.NewCommandError("redact", ctx.Err())
		case output := <-runner.Results():
			if output.Err != nil {
				failed++
				logger.Warn("document failed", "document_id", output.DocumentID, "error", output.Err)
			} else if err := encoder.Encode(toResponse(output.Result)); err != nil {
				return cli.NewCommandError("redact", err)
			}
			progress.Update(int64(done + 1))
		}
	}
	progress.Finish()

	if failed > 0 {
		return cli.NewCommandError("redact", fmt.Errorf("%d of %d documents failed", failed, len(docs)))
	}
	fmt.Fprintf(os.Stderr, "✓ Redacted %d documents\n", len(docs))
	return nil
}

func toResponse(result *plugin.Result) server.RedactResponse {
	return server.RedactResponse{
		DocumentID:     result.DocumentID,
		RedactedText:   result.RedactedText,
		Spans:          result.Spans,
		ShortCircuited: result.ShortCircuited,
		DurationMS:     result.Duration.Milliseconds(),
	}
}
