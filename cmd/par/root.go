package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/cli"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/config"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "par",
	Short: "Partial animation replacer - rule driven joint overrides",
	Long: `par applies partial animation replacement rules to skeletons.

A rule overrides the rotation, translation or scale of named joints and can
softly limit joints to a range. Rules are loaded from a directory of JSON or
YAML files, reloaded when files change, and assigned to subjects by their
conditions and priority.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the command's status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errorsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (json, text, console)")
}

// loadConfig loads the config file named by --config with environment
// overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", "failed to load config", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg and the logging flags.
func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	if logLevel != "" {
		cfg.Level = logLevel
	}
	if logFormat != "" {
		cfg.Format = logFormat
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
		Writer:    os.Stderr,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error(), err)
	}
	slog.SetDefault(logger)
	return logger, nil
}

// commandContext returns the command's context, or a background context
// when the command is invoked directly.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd == nil || cmd.Context() == nil {
		return context.Background()
	}
	return cmd.Context()
}

// errorsReported reports whether the command already printed its failure.
func errorsReported(err error) bool {
	return cli.ExitCode(err) == 1
}
