package config

import "time"

// Config is the root configuration.
type Config struct {
	// Rules controls where rule files are found and how they are reloaded.
	Rules RulesConfig `yaml:"rules" envPrefix:"RULES_"`

	// Evaluation controls the evaluation pass.
	Evaluation EvaluationConfig `yaml:"evaluation" envPrefix:"EVALUATION_"`

	// Apply controls the apply pass.
	Apply ApplyConfig `yaml:"apply" envPrefix:"APPLY_"`

	// History controls the snapshot journal.
	History HistoryConfig `yaml:"history" envPrefix:"HISTORY_"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`

	// Admin controls the admin HTTP server.
	Admin AdminConfig `yaml:"admin" envPrefix:"ADMIN_"`
}

// RulesConfig contains rule discovery and reload configuration.
type RulesConfig struct {
	// Directory is the rule root. Each subdirectory is a group of rule files.
	// Default: "rules"
	Directory string `yaml:"directory" env:"DIRECTORY"`

	// Extensions lists the accepted rule file extensions.
	// Default: [".json", ".yaml", ".yml"]
	Extensions []string `yaml:"extensions" env:"EXTENSIONS" envSeparator:","`

	// Watch enables hot reload on file changes.
	// Default: true
	Watch bool `yaml:"watch" env:"WATCH"`

	// Debounce is the quiet period per file before a change is reloaded.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce" env:"DEBOUNCE"`

	// RescanSchedule is a cron expression for full directory reloads.
	// Empty disables rescanning.
	// Default: "@every 5m"
	RescanSchedule string `yaml:"rescan_schedule" env:"RESCAN_SCHEDULE"`

	// MaxFileSize is the largest accepted rule file in bytes.
	// Default: 1MB
	MaxFileSize int64 `yaml:"max_file_size" env:"MAX_FILE_SIZE"`

	// SkipHidden ignores files and directories starting with a dot.
	// Default: true
	SkipHidden bool `yaml:"skip_hidden" env:"SKIP_HIDDEN"`
}

// EvaluationConfig contains evaluation pass configuration.
type EvaluationConfig struct {
	// Interval is the time between evaluation passes.
	// Default: 1s
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

// ApplyConfig contains apply pass configuration.
type ApplyConfig struct {
	// Enabled switches the apply pass on at startup.
	// Default: true
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Interval is the time between apply passes.
	// Default: 16ms
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`

	// Parallelism bounds concurrently applied subjects. Zero is unbounded.
	// Default: 4
	Parallelism int `yaml:"parallelism" env:"PARALLELISM"`
}

// HistoryConfig contains snapshot journal configuration.
type HistoryConfig struct {
	// Enabled records every published snapshot.
	// Default: false
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Path is the SQLite database file.
	// Default: "data/history.db"
	Path string `yaml:"path" env:"PATH"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`

	// RetentionDays deletes entries older than this many days. Zero keeps
	// everything.
	// Default: 7
	RetentionDays int `yaml:"retention_days" env:"RETENTION_DAYS"`

	// PruneSchedule is a cron expression for retention pruning.
	// Default: "0 * * * *"
	PruneSchedule string `yaml:"prune_schedule" env:"PRUNE_SCHEDULE"`

	// BufferSize is the number of snapshots queued for writing.
	// Default: 256
	BufferSize int `yaml:"buffer_size" env:"BUFFER_SIZE"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOGGING_"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing" envPrefix:"TRACING_"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level" env:"LEVEL"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format" env:"FORMAT"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source" env:"ADD_SOURCE"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path" env:"PATH"`

	// Namespace is the metric name prefix.
	// Default: "par"
	Namespace string `yaml:"namespace" env:"NAMESPACE"`

	// Subsystem is the metric subsystem name.
	// Default: "replacer"
	Subsystem string `yaml:"subsystem" env:"SUBSYSTEM"`
}

// AdminConfig contains admin HTTP server configuration.
type AdminConfig struct {
	// Enabled starts the admin server with the run command.
	// Default: true
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// ListenAddress is the admin server address.
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address" env:"LISTEN_ADDRESS"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// TracingConfig contains OpenTelemetry tracing configuration. Evaluation,
// apply and reload passes and admin requests are traced.
type TracingConfig struct {
	// Enabled turns on span export.
	// Default: false
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Exporter selects the span exporter.
	// Options: "otlp" (gRPC), "stdout"
	// Default: "otlp"
	Exporter string `yaml:"exporter" env:"EXPORTER"`

	// Endpoint is the OTLP collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure" env:"INSECURE"`

	// Timeout bounds a single export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// Sampler is the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler" env:"SAMPLER"`

	// SampleRatio is the fraction of traces kept by the "ratio" sampler.
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "par"
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}
