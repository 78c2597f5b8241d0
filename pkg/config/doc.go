// Package config provides configuration management for the replacer
// runtime.
//
// Configuration is loaded from a YAML file with optional environment
// variable overrides:
//
//	cfg, err := config.LoadConfig("par.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("par.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention PAR_SECTION_FIELD.
// For example:
//
//   - PAR_RULES_DIRECTORY overrides rules.directory
//   - PAR_APPLY_PARALLELISM overrides apply.parallelism
//   - PAR_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// There is no process-wide configuration; callers pass *Config to the
// components they build.
package config
