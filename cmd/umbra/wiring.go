package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"umbra-hq/umbra/pkg/audit"
	"umbra-hq/umbra/pkg/config"
	"umbra-hq/umbra/pkg/confidence"
	"umbra-hq/umbra/pkg/disambiguation"
	"umbra-hq/umbra/pkg/pipeline"
	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/telemetry/logging"
	"umbra-hq/umbra/pkg/telemetry/metrics"
	"umbra-hq/umbra/pkg/telemetry/tracing"
)

// loadCLIConfig loads the configuration file named by --config. When the
// flag is left at its default and no file exists, built-in defaults apply
// so one-shot commands work without any setup.
func loadCLIConfig() (*config.Config, error) {
	if cfgFile == "config.yaml" {
		if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
			return config.NewDefaultConfig(), nil
		}
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

// buildLogger builds the process logger from the telemetry section. The
// --verbose flag forces debug level regardless of configuration. A nil
// writer defaults to stdout; one-shot commands pass stderr so their
// stdout stays parseable.
func buildLogger(cfg *config.Config, redactValues bool, w io.Writer) (*slog.Logger, error) {
	level := cfg.Telemetry.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Config{
		Level:        level,
		Format:       cfg.Telemetry.Logging.Format,
		AddSource:    cfg.Telemetry.Logging.AddSource,
		RedactValues: redactValues,
		Writer:       w,
	})
}

// buildConfidence builds the confidence engine, loading the modifier rule
// file when one is configured and falling back to the built-in set.
func buildConfidence(cfg *config.Config, logger *slog.Logger) (*confidence.Engine, error) {
	registry := confidence.NewDefaultRegistry()
	if cfg.Rules.Path != "" {
		loaded, err := confidence.LoadRegistry(cfg.Rules.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule file %q: %w", cfg.Rules.Path, err)
		}
		registry = loaded
	}
	return confidence.NewEngine(cfg.Confidence, registry, logger), nil
}

// buildDisambiguation builds the disambiguation engine and, when a SQLite
// observation store is configured, warms the vector cache from it. The
// returned store is nil for the memory backend.
func buildDisambiguation(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*disambiguation.Engine, *disambiguation.SQLiteStore, error) {
	cache := disambiguation.NewObservationCache(0)
	vector := disambiguation.NewVectorStrategy(cfg.Disambiguation.Vector, nil, cache)

	var store *disambiguation.SQLiteStore
	if cfg.Disambiguation.Store.Backend == "sqlite" {
		var err error
		store, err = disambiguation.NewSQLiteStore(disambiguation.SQLiteStoreConfig{
			Path:        cfg.Disambiguation.Store.Path,
			BusyTimeout: cfg.Disambiguation.Store.BusyTimeout,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open observation store: %w", err)
		}
		if err := disambiguation.WarmCache(ctx, store, cache); err != nil {
			logger.Warn("observation cache warm-up failed", "error", err)
		}
	}

	var strategy disambiguation.Strategy
	switch cfg.Disambiguation.Strategy {
	case "vector":
		strategy = vector
	case "embedding":
		// No embedding provider is wired in-process; the strategy degrades
		// to its vector fallback until one is registered.
		strategy = disambiguation.NewEmbeddingStrategy(nil, vector, logger)
	default:
		strategy = disambiguation.NewKeywordStrategy(cfg.Disambiguation.Keyword, nil)
	}

	return disambiguation.NewEngine(strategy, vector, logger), store, nil
}

// buildPlugins builds the plugin manager and brings every discovered
// plugin to the enabled state. Discovery problems degrade, they do not
// abort startup.
func buildPlugins(ctx context.Context, cfg *config.Config, logger *slog.Logger) *plugin.Manager {
	manager := plugin.NewManager(cfg.Plugins, logger)

	if cfg.Plugins.PluginDir != "" {
		count, err := manager.Discover()
		if err != nil {
			logger.Warn("plugin discovery failed", "dir", cfg.Plugins.PluginDir, "error", err)
		} else if count > 0 {
			logger.Info("plugins discovered", "count", count)
		}
	}
	if err := manager.LoadAll(ctx); err != nil {
		logger.Warn("some plugins failed to load", "error", err)
	}
	if err := manager.EnableAll(); err != nil {
		logger.Warn("some plugins failed to enable", "error", err)
	}
	return manager
}

// buildAuditSink builds the audit storage and sink. Both are nil when
// auditing is disabled.
func buildAuditSink(cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) (*audit.Sink, audit.Storage, error) {
	if !cfg.Audit.Enabled {
		return nil, nil, nil
	}

	var storage audit.Storage
	switch cfg.Audit.Backend {
	case "sqlite":
		s, err := audit.NewSQLiteStorage(&audit.SQLiteConfig{
			Path:        cfg.Audit.SQLite.Path,
			WALMode:     cfg.Audit.SQLite.WALMode,
			BusyTimeout: cfg.Audit.SQLite.BusyTimeout,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit storage: %w", err)
		}
		storage = s
	case "memory":
		storage = audit.NewMemoryStorage()
	default:
		return nil, nil, fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
	}

	return audit.NewSink(storage, collector, logger), storage, nil
}

// buildPipeline assembles the redaction pipeline from the shared engines.
func buildPipeline(cfg *config.Config, plugins *plugin.Manager, conf *confidence.Engine, disamb *disambiguation.Engine, sink *audit.Sink, collector *metrics.Collector, tracer *tracing.Tracer, logger *slog.Logger) (*pipeline.Pipeline, error) {
	deps := pipeline.Deps{
		Detector:       pipeline.NewCandidateDetector(plugins),
		Redactor:       pipeline.NewTokenRedactor(),
		Plugins:        plugins,
		Confidence:     conf,
		Disambiguation: disamb,
		Collector:      collector,
		Tracer:         tracer,
	}
	if sink != nil {
		deps.Audit = sink
	}
	return pipeline.New(pipeline.Config{FailFast: cfg.Plugins.FailFast}, deps, logger)
}
