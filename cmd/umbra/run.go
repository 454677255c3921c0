package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"umbra-hq/umbra/pkg/audit"
	"umbra-hq/umbra/pkg/cli"
	"umbra-hq/umbra/pkg/config"
	"umbra-hq/umbra/pkg/confidence"
	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/server"
	"umbra-hq/umbra/pkg/stream"
	"umbra-hq/umbra/pkg/telemetry/health"
	"umbra-hq/umbra/pkg/telemetry/metrics"
	"umbra-hq/umbra/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Umbra redaction server",
	Long: `Start the Umbra redaction server with the specified configuration.

The server accepts documents with candidate spans on /v1/redact, runs them
through the confidence, disambiguation, and plugin stages, and records an
audit entry for every pass.

Examples:
  # Start with default config
  umbra run

  # Start with custom config
  umbra run --config /etc/umbra/config.yaml

  # Override listen address
  umbra run --listen 0.0.0.0:8080

  # Validate config without starting server
  umbra run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	// The server logger always scrubs identifier-shaped values: a redaction
	// engine must not leak documents through its own logs.
	logger, err := buildLogger(cfg, true, nil)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	printBanner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}
	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.Options{})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer tracer.Shutdown(context.Background())

	// Plugins
	plugins := buildPlugins(ctx, cfg, logger)
	enabled := 0
	for _, info := range plugins.List() {
		if info.State == plugin.StateEnabled {
			enabled++
		}
	}
	if collector != nil {
		plugins.Sandbox().SetObserver(collector)
		collector.SetEnabledPlugins(enabled)
	}
	fmt.Printf("✓ Plugins enabled (%d of %d)\n", enabled, len(plugins.List()))

	// Confidence engine, with optional rule hot reload
	confEngine, err := buildConfidence(cfg, logger)
	if err != nil {
		return cli.NewConfigError("rules", err.Error())
	}
	if cfg.Rules.Watch && cfg.Rules.Path != "" {
		watcher, err := confidence.NewRuleWatcher(cfg.Rules.Path, confEngine, cfg.Rules.DebounceDelay, logger)
		if err != nil {
			return cli.NewConfigError("rules", err.Error())
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Warn("rule watcher exited", "error", err)
			}
		}()
		defer watcher.Stop()
		fmt.Printf("✓ Rule hot reload active (%s)\n", cfg.Rules.Path)
	}

	// Disambiguation engine, warming the cache from the observation store
	disambEngine, obsStore, err := buildDisambiguation(ctx, cfg, logger)
	if err != nil {
		return cli.NewConfigError("disambiguation", err.Error())
	}
	if obsStore != nil {
		defer obsStore.Close()
		defer func() {
			if err := obsStore.Snapshot(context.Background(), disambEngine.Cache()); err != nil {
				slog.Warn("observation snapshot failed", "error", err)
			}
		}()
	}

	// Audit storage and retention
	sink, auditStorage, err := buildAuditSink(cfg, collector, logger)
	if err != nil {
		return cli.NewConfigError("audit", err.Error())
	}
	if auditStorage != nil {
		defer auditStorage.Close()
		fmt.Printf("✓ Audit store initialized (%s)\n", auditStorage.Backend())

		if cfg.Audit.Retention.Enabled {
			pruner := audit.NewPruner(auditStorage, &audit.PrunerConfig{
				MaxAge:   cfg.Audit.Retention.MaxAge,
				Schedule: cfg.Audit.Retention.Schedule,
			}, collector, logger)
			if err := pruner.Start(ctx); err != nil {
				slog.Warn("failed to start audit retention scheduler", "error", err)
			} else {
				defer pruner.Stop()
				if next := pruner.NextPruning(); next != nil {
					slog.Debug("audit retention scheduler started", "next_pruning", next)
				}
			}
		}
	}

	// Pipeline and supervised stream workers
	pipe, err := buildPipeline(cfg, plugins, confEngine, disambEngine, sink, collector, tracer, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	runner, err := stream.NewRunner(stream.Config{
		Workers:    cfg.Stream.Workers,
		Queue:      cfg.Stream.Queue,
		Breaker:    cfg.Stream.Breaker,
		Supervisor: cfg.Stream.Supervisor,
	}, pipe, collector, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	if err := runner.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer runner.Stop()
	go func() {
		for out := range runner.Results() {
			if out.Err != nil {
				slog.Warn("stream document failed", "document_id", out.DocumentID, "error", out.Err)
			}
		}
	}()

	// Health checks
	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	server.RegisterChecks(checker, runner, plugins)

	deps := server.Deps{
		Pipeline:  pipe,
		Runner:    runner,
		Health:    checker,
		Collector: collector,
		Audit:     auditStorage,
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	}
	srv := server.New(&cfg.Server, deps, logger)

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Redact endpoint:  http://%s/v1/redact\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint:  http://%s/healthz\n", cfg.Server.ListenAddress)
	if collector != nil {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a signal arrives or the listener fails; graceful
	// shutdown happens inside.
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Umbra v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	slog.Debug("disambiguation strategy", "strategy", cfg.Disambiguation.Strategy)
	if cfg.Rules.Path != "" {
		slog.Debug("modifier rules", "path", cfg.Rules.Path, "watch", cfg.Rules.Watch)
	}
	if cfg.Audit.Enabled {
		slog.Debug("audit enabled", "backend", cfg.Audit.Backend)
	}
}
