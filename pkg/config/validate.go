package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "rules.directory").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration. All validation errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateLoop(cfg)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateAdmin(&cfg.Admin)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.Directory) == "" {
		errs = append(errs, FieldError{Field: "rules.directory", Message: "must not be empty"})
	}
	for i, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("rules.extensions[%d]", i),
				Message: fmt.Sprintf("invalid extension %q, must start with a dot", ext),
			})
		}
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{Field: "rules.debounce", Message: "must not be negative"})
	}
	if cfg.MaxFileSize < 0 {
		errs = append(errs, FieldError{Field: "rules.max_file_size", Message: "must not be negative"})
	}
	if cfg.RescanSchedule != "" {
		if _, err := cron.ParseStandard(cfg.RescanSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "rules.rescan_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	return errs
}

func validateLoop(cfg *Config) []FieldError {
	var errs []FieldError

	if cfg.Evaluation.Interval <= 0 {
		errs = append(errs, FieldError{Field: "evaluation.interval", Message: "must be positive"})
	}
	if cfg.Apply.Interval <= 0 {
		errs = append(errs, FieldError{Field: "apply.interval", Message: "must be positive"})
	}
	if cfg.Apply.Parallelism < 0 {
		errs = append(errs, FieldError{Field: "apply.parallelism", Message: "must not be negative"})
	}
	return errs
}

func validateHistory(cfg *HistoryConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if strings.TrimSpace(cfg.Path) == "" {
		errs = append(errs, FieldError{Field: "history.path", Message: "must not be empty when history is enabled"})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "history.retention_days", Message: "must not be negative"})
	}
	if cfg.BufferSize < 1 {
		errs = append(errs, FieldError{Field: "history.buffer_size", Message: "must be at least 1"})
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "history.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q, must be one of: debug, info, warn, error", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q, must be one of: json, text, console", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	return append(errs, validateTracing(&cfg.Tracing)...)
}

func validateTracing(cfg *TracingConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	var errs []FieldError

	switch cfg.Exporter {
	case "otlp":
		if cfg.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "required for the otlp exporter"})
		}
	case "stdout":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.exporter",
			Message: fmt.Sprintf("invalid exporter %q, must be one of: otlp, stdout", cfg.Exporter),
		})
	}

	switch cfg.Sampler {
	case "always", "never":
	case "ratio":
		if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q, must be one of: always, never, ratio", cfg.Sampler),
		})
	}
	return errs
}

func validateAdmin(cfg *AdminConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "admin.listen_address",
			Message: fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err),
		})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{Field: "admin.shutdown_timeout", Message: "must be positive"})
	}
	return errs
}
