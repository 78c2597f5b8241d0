package cli

import (
	"errors"
	"fmt"
)

// ErrFindings is returned when a command completed but reported problems,
// such as lint rejecting a rule file. The command has already printed them.
var ErrFindings = errors.New("problems found")

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string, cause error) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps a command error to a process exit status: 0 for success,
// 1 for findings, 2 for configuration errors and 3 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, ErrFindings) {
		return 1
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return 2
	}
	return 3
}
