package config

import "time"

// Default values for configuration fields.
const (
	// Rules defaults
	DefaultRulesDirectory   = "rules"
	DefaultRulesWatch       = true
	DefaultRulesDebounce    = 100 * time.Millisecond
	DefaultRescanSchedule   = "@every 5m"
	DefaultRulesMaxFileSize = int64(1 << 20)
	DefaultRulesSkipHidden  = true

	// Evaluation and apply defaults
	DefaultEvaluationInterval = time.Second
	DefaultApplyEnabled       = true
	DefaultApplyInterval      = 16 * time.Millisecond
	DefaultApplyParallelism   = 4

	// History defaults
	DefaultHistoryEnabled       = false
	DefaultHistoryPath          = "data/history.db"
	DefaultHistoryBusyTimeout   = 5 * time.Second
	DefaultHistoryRetentionDays = 7
	DefaultHistoryPruneSchedule = "0 * * * *"
	DefaultHistoryBufferSize    = 256

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "par"
	DefaultMetricsSubsystem = "replacer"
	DefaultTracingExporter  = "otlp"
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingTimeout   = 10 * time.Second
	DefaultTracingSampler   = "always"
	DefaultTracingService   = "par"

	// Admin defaults
	DefaultAdminEnabled         = true
	DefaultAdminListenAddress   = "127.0.0.1:9464"
	DefaultAdminShutdownTimeout = 5 * time.Second
)

// DefaultRuleExtensions lists the rule file extensions accepted by default.
var DefaultRuleExtensions = []string{".json", ".yaml", ".yml"}

// Default returns a configuration with every default applied, including
// the boolean switches that default to true.
func Default() *Config {
	cfg := &Config{
		Rules: RulesConfig{
			Watch:      DefaultRulesWatch,
			SkipHidden: DefaultRulesSkipHidden,
		},
		Apply: ApplyConfig{
			Enabled: DefaultApplyEnabled,
		},
		History: HistoryConfig{
			Enabled: DefaultHistoryEnabled,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
		Admin: AdminConfig{
			Enabled: DefaultAdminEnabled,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for fields that have zero values. Boolean
// switches are left alone; they get their defaults from Default before
// the file is decoded on top. This function is idempotent.
func ApplyDefaults(cfg *Config) {
	// Rules defaults
	if cfg.Rules.Directory == "" {
		cfg.Rules.Directory = DefaultRulesDirectory
	}
	if len(cfg.Rules.Extensions) == 0 {
		cfg.Rules.Extensions = append([]string(nil), DefaultRuleExtensions...)
	}
	if cfg.Rules.Debounce == 0 {
		cfg.Rules.Debounce = DefaultRulesDebounce
	}
	if cfg.Rules.MaxFileSize == 0 {
		cfg.Rules.MaxFileSize = DefaultRulesMaxFileSize
	}

	// Evaluation and apply defaults
	if cfg.Evaluation.Interval == 0 {
		cfg.Evaluation.Interval = DefaultEvaluationInterval
	}
	if cfg.Apply.Interval == 0 {
		cfg.Apply.Interval = DefaultApplyInterval
	}
	if cfg.Apply.Parallelism == 0 {
		cfg.Apply.Parallelism = DefaultApplyParallelism
	}

	// History defaults
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.History.BusyTimeout == 0 {
		cfg.History.BusyTimeout = DefaultHistoryBusyTimeout
	}
	if cfg.History.RetentionDays == 0 {
		cfg.History.RetentionDays = DefaultHistoryRetentionDays
	}
	if cfg.History.PruneSchedule == "" {
		cfg.History.PruneSchedule = DefaultHistoryPruneSchedule
	}
	if cfg.History.BufferSize == 0 {
		cfg.History.BufferSize = DefaultHistoryBufferSize
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Tracing.Exporter == "" {
		cfg.Telemetry.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingService
	}

	// Admin defaults
	if cfg.Admin.ListenAddress == "" {
		cfg.Admin.ListenAddress = DefaultAdminListenAddress
	}
	if cfg.Admin.ShutdownTimeout == 0 {
		cfg.Admin.ShutdownTimeout = DefaultAdminShutdownTimeout
	}
}
