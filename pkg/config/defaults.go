package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576  // 1MB
	DefaultMaxBodyBytes    = 10485760 // 10MB

	// Rules defaults
	DefaultRulesWatch         = false
	DefaultRulesDebounceDelay = 500 * time.Millisecond

	// Disambiguation defaults
	DefaultDisambiguationStrategy = "keyword"
	DefaultObservationBackend     = "memory"
	DefaultObservationPath        = "umbra-observations.db"
	DefaultObservationBusyTimeout = 5 * time.Second

	// Stream defaults
	DefaultStreamWorkers = 4

	// Audit defaults
	DefaultAuditEnabled           = true
	DefaultAuditBackend           = "memory"
	DefaultAuditSQLitePath        = "umbra-audit.db"
	DefaultAuditSQLiteBusyTimeout = 5 * time.Second
	DefaultAuditSQLiteWALMode     = true
	DefaultAuditRetentionMaxAge   = 720 * time.Hour
	DefaultAuditRetentionSchedule = "0 3 * * *"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Metrics defaults
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "umbra"
	DefaultMetricsSubsystem = "core"

	// Tracing defaults
	DefaultTracingEnabled     = false
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingExporter    = "stdout"
	DefaultTracingServiceName = "umbra"

	// Health defaults
	DefaultHealthEnabled       = true
	DefaultHealthLivenessPath  = "/healthz"
	DefaultHealthReadinessPath = "/readyz"
	DefaultHealthCheckTimeout  = 5 * time.Second
)

// Default histogram buckets.
var (
	// DefaultStageDurationBuckets covers pipeline stage latencies from
	// sub-millisecond hook calls to multi-second embedding lookups.
	DefaultStageDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0}

	// DefaultSpanCountBuckets covers per-document detected span counts.
	DefaultSpanCountBuckets = []float64{1, 5, 10, 25, 50, 100, 250}
)

// ApplyDefaults fills in default values for any configuration fields that
// were not explicitly set. Component-owned sections (confidence engine,
// plugins, queue, breaker, supervisor) default inside their own
// constructors; this covers everything the config package owns.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Rules
	if cfg.Rules.DebounceDelay == 0 {
		cfg.Rules.DebounceDelay = DefaultRulesDebounceDelay
	}

	// Disambiguation
	if cfg.Disambiguation.Strategy == "" {
		cfg.Disambiguation.Strategy = DefaultDisambiguationStrategy
	}
	if cfg.Disambiguation.Store.Backend == "" {
		cfg.Disambiguation.Store.Backend = DefaultObservationBackend
	}
	if cfg.Disambiguation.Store.Path == "" {
		cfg.Disambiguation.Store.Path = DefaultObservationPath
	}
	if cfg.Disambiguation.Store.BusyTimeout == 0 {
		cfg.Disambiguation.Store.BusyTimeout = DefaultObservationBusyTimeout
	}

	// Stream
	if cfg.Stream.Workers == 0 {
		cfg.Stream.Workers = DefaultStreamWorkers
	}

	// Audit
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if cfg.Audit.Retention.MaxAge == 0 {
		cfg.Audit.Retention.MaxAge = DefaultAuditRetentionMaxAge
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = DefaultAuditRetentionSchedule
	}

	// Logging
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}

	// Metrics
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.StageDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.StageDurationBuckets = DefaultStageDurationBuckets
	}
	if len(cfg.Telemetry.Metrics.SpanCountBuckets) == 0 {
		cfg.Telemetry.Metrics.SpanCountBuckets = DefaultSpanCountBuckets
	}

	// Tracing
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Exporter == "" {
		cfg.Telemetry.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}

	// Health
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultHealthLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultHealthReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}

// NewDefaultConfig returns a fully defaulted configuration. Boolean
// fields that default to true are set here since ApplyDefaults cannot
// distinguish "false" from "unset".
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Audit.Enabled = DefaultAuditEnabled
	cfg.Audit.SQLite.WALMode = DefaultAuditSQLiteWALMode
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Health.Enabled = DefaultHealthEnabled
	ApplyDefaults(cfg)
	return cfg
}
