package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"

	"umbra-hq/umbra/pkg/confidence"
)

// Validate checks the configuration for errors and returns a descriptive
// error for the first problem found.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validateConfidence(cfg); err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	if err := validateDisambiguation(&cfg.Disambiguation); err != nil {
		return fmt.Errorf("disambiguation: %w", err)
	}
	if err := validateStream(&cfg.Stream); err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	if err := validateAudit(&cfg.Audit); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("listen_address %q is not host:port: %w", cfg.ListenAddress, err)
	}
	if cfg.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must not be negative")
	}
	return nil
}

func validateConfidence(cfg *Config) error {
	c := cfg.Confidence
	if c.Ceiling != 0 && (c.Ceiling <= 0 || c.Ceiling > 1) {
		return fmt.Errorf("ceiling %v must be in (0, 1]", c.Ceiling)
	}
	if c.Floor < 0 || c.Floor >= 1 {
		return fmt.Errorf("floor %v must be in [0, 1)", c.Floor)
	}
	// An unset ceiling is defaulted by the engine, so the floor still has
	// to clear the effective value.
	ceiling := c.Ceiling
	if ceiling == 0 {
		ceiling = confidence.DefaultEngineConfig().Ceiling
	}
	if c.Floor >= ceiling {
		return fmt.Errorf("floor %v must be below ceiling %v", c.Floor, ceiling)
	}
	if c.Proximity < 0 {
		return fmt.Errorf("proximity must not be negative")
	}
	return nil
}

func validateDisambiguation(cfg *DisambiguationConfig) error {
	switch cfg.Strategy {
	case "keyword", "vector", "embedding":
	default:
		return fmt.Errorf("strategy %q must be one of: keyword, vector, embedding", cfg.Strategy)
	}

	switch cfg.Store.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("store backend %q must be one of: memory, sqlite", cfg.Store.Backend)
	}
	if cfg.Store.Backend == "sqlite" && cfg.Store.Path == "" {
		return fmt.Errorf("store path is required for the sqlite backend")
	}

	if cfg.Vector.Dimensions < 0 {
		return fmt.Errorf("vector dimensions must not be negative")
	}
	if cfg.Keyword.ScoreThreshold < 0 || cfg.Keyword.ScoreThreshold > 1 {
		return fmt.Errorf("keyword score threshold %v must be in [0, 1]", cfg.Keyword.ScoreThreshold)
	}
	return nil
}

func validateStream(cfg *StreamConfig) error {
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if cfg.Queue.HighWaterMark != 0 {
		if err := cfg.Queue.Validate(); err != nil {
			return fmt.Errorf("queue: %w", err)
		}
	}
	if cfg.Breaker.FailureThreshold < 0 || cfg.Breaker.SuccessThreshold < 0 {
		return fmt.Errorf("breaker thresholds must not be negative")
	}
	if s := cfg.Supervisor.Strategy; s != "" {
		switch s {
		case "one_for_one", "one_for_all", "rest_for_one":
		default:
			return fmt.Errorf("supervisor strategy %q must be one of: one_for_one, one_for_all, rest_for_one", s)
		}
	}
	return nil
}

func validateAudit(cfg *AuditConfig) error {
	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("backend %q must be one of: memory, sqlite", cfg.Backend)
	}
	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		return fmt.Errorf("sqlite path is required for the sqlite backend")
	}
	if cfg.Retention.Enabled {
		if cfg.Retention.MaxAge <= 0 {
			return fmt.Errorf("retention max_age must be positive")
		}
		if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
			return fmt.Errorf("retention schedule %q is not a valid cron expression: %w", cfg.Retention.Schedule, err)
		}
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level %q must be one of: debug, info, warn, error", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging format %q must be one of: json, text", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Path == "" || !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("metrics path %q must start with /", cfg.Metrics.Path)
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			return fmt.Errorf("tracing sampler %q must be one of: always, never, ratio", cfg.Tracing.Sampler)
		}
		if cfg.Tracing.Sampler == "ratio" && (cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1) {
			return fmt.Errorf("tracing sample_ratio %v must be in [0, 1]", cfg.Tracing.SampleRatio)
		}
		switch cfg.Tracing.Exporter {
		case "stdout", "none":
		default:
			return fmt.Errorf("tracing exporter %q must be one of: stdout, none", cfg.Tracing.Exporter)
		}
	}
	return nil
}
