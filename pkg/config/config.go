package config

import (
	"time"

	"umbra-hq/umbra/pkg/confidence"
	"umbra-hq/umbra/pkg/disambiguation"
	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/resilience"
)

// Config is the root configuration structure for Umbra. It contains all
// configuration sections for the HTTP server, the redaction pipeline, the
// plugin system, streaming, audit storage, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and graceful shutdown settings.
	Server ServerConfig `yaml:"server"`

	// Rules contains the confidence modifier rule source configuration,
	// including hot reload.
	Rules RulesConfig `yaml:"rules"`

	// Confidence contains the confidence modifier engine configuration.
	Confidence confidence.EngineConfig `yaml:"confidence"`

	// Disambiguation contains strategy selection and vector settings for
	// the disambiguation engine.
	Disambiguation DisambiguationConfig `yaml:"disambiguation"`

	// Plugins contains plugin discovery and sandbox configuration.
	Plugins plugin.ManagerConfig `yaml:"plugins"`

	// Stream contains the streaming runner configuration: worker count,
	// backpressure queue, circuit breaker, and supervisor settings.
	Stream StreamConfig `yaml:"stream"`

	// Audit contains audit record storage and retention configuration.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains configuration for observability including
	// logging, metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response. A zero or negative value means no timeout.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are cut off.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits the size of accepted request bodies.
	// Default: 10485760 (10MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// RulesConfig contains the modifier rule source configuration.
type RulesConfig struct {
	// Path is an optional YAML rule file. Empty selects the built-in
	// default modifier set.
	Path string `yaml:"path"`

	// Watch enables hot reload of the rule file on change.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceDelay coalesces rapid file change events into one reload.
	// Default: 500ms
	DebounceDelay time.Duration `yaml:"debounce_delay"`
}

// DisambiguationConfig contains disambiguation engine configuration.
type DisambiguationConfig struct {
	// Strategy selects the resolution strategy.
	// Options: "keyword", "vector", "embedding"
	// Default: "keyword"
	Strategy string `yaml:"strategy"`

	// Keyword contains keyword heuristic settings.
	Keyword disambiguation.KeywordConfig `yaml:"keyword"`

	// Vector contains hash-vector settings, also used as the embedding
	// strategy's fallback.
	Vector disambiguation.VectorConfig `yaml:"vector"`

	// Store contains the optional persistent observation store that warms
	// the vector cache across restarts.
	Store ObservationStoreConfig `yaml:"store"`
}

// ObservationStoreConfig contains observation persistence configuration.
type ObservationStoreConfig struct {
	// Backend selects the storage backend.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path.
	// Default: "umbra-observations.db"
	Path string `yaml:"path"`

	// BusyTimeout is the SQLite busy timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// StreamConfig contains the streaming runner configuration.
type StreamConfig struct {
	// Workers is the number of supervised pipeline workers.
	// Default: 4
	Workers int `yaml:"workers"`

	// Queue contains backpressure queue watermarks and capacity.
	Queue resilience.QueueConfig `yaml:"queue"`

	// Breaker contains the circuit breaker guarding pipeline passes.
	Breaker resilience.BreakerConfig `yaml:"breaker"`

	// Supervisor contains worker supervision settings.
	Supervisor resilience.SupervisorConfig `yaml:"supervisor"`
}

// AuditConfig contains audit record storage configuration.
type AuditConfig struct {
	// Enabled controls whether pipeline passes emit audit records.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend settings.
	SQLite AuditSQLiteConfig `yaml:"sqlite"`

	// Retention contains scheduled pruning settings.
	Retention RetentionConfig `yaml:"retention"`
}

// AuditSQLiteConfig contains SQLite settings for the audit store.
type AuditSQLiteConfig struct {
	// Path is the database file path.
	// Default: "umbra-audit.db"
	Path string `yaml:"path"`

	// BusyTimeout is the SQLite busy timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`
}

// RetentionConfig contains audit retention configuration.
type RetentionConfig struct {
	// Enabled controls whether scheduled pruning runs.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// MaxAge is how long audit records are kept.
	// Default: 720h (30 days)
	MaxAge time.Duration `yaml:"max_age"`

	// Schedule is a cron expression for pruning runs.
	// Default: "0 3 * * *" (daily at 03:00)
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "umbra"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "core"
	Subsystem string `yaml:"subsystem"`

	// StageDurationBuckets defines histogram buckets for pipeline stage
	// durations (seconds).
	// Default: [0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0]
	StageDurationBuckets []float64 `yaml:"stage_duration_buckets"`

	// SpanCountBuckets defines histogram buckets for per-document span
	// counts.
	// Default: [1, 5, 10, 25, 50, 100, 250]
	SpanCountBuckets []float64 `yaml:"span_count_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1 (10%)
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter determines the trace exporter to use.
	// Options: "stdout", "none"
	// Default: "stdout"
	Exporter string `yaml:"exporter"`

	// ServiceName is the service name in traces.
	// Default: "umbra"
	ServiceName string `yaml:"service_name"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/healthz"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/readyz"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
