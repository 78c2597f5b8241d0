package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := &ConfigError{
		Field:   "rules.directory",
		Message: "must not be empty",
	}

	expected := "config error in rules.directory: must not be empty"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}

	noField := &ConfigError{Message: "failed to load"}
	if noField.Error() != "config error: failed to load" {
		t.Errorf("Error() = %q", noField.Error())
	}
}

func TestNewConfigError(t *testing.T) {
	cause := errors.New("boom")
	err := NewConfigError("field", "message", cause)
	if err.Field != "field" {
		t.Errorf("Field = %q, want %q", err.Field, "field")
	}
	if err.Message != "message" {
		t.Errorf("Message = %q, want %q", err.Message, "message")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the cause")
	}
}

func TestCommandError(t *testing.T) {
	inner := errors.New("inner error")
	err := NewCommandError("run", inner)

	expected := "command run failed: inner error"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is() should unwrap to the inner error")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "findings", err: fmt.Errorf("lint: %w", ErrFindings), want: 1},
		{name: "config", err: NewConfigError("", "bad", nil), want: 2},
		{name: "wrapped config", err: NewCommandError("run", NewConfigError("x", "bad", nil)), want: 2},
		{name: "other", err: errors.New("boom"), want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
