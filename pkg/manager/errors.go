package manager

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedExtension is returned for files whose extension is not
	// an accepted rule format.
	ErrUnsupportedExtension = errors.New("unsupported rule file extension")

	// ErrFileTooLarge is returned when a rule file exceeds the size limit.
	ErrFileTooLarge = errors.New("rule file too large")
)

// LoadError represents an error that occurred while reading a rule file.
// This includes file system errors like "file not found", "permission denied",
// or errors related to file size limits or encoding validation.
type LoadError struct {
	// FilePath is the path to the file that failed to load
	FilePath string

	// Message describes the error
	Message string

	// Cause is the underlying error that caused this load error
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load rule file %q: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load rule file %q: %s", e.FilePath, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ParseError represents a rule file that could not be decoded.
type ParseError struct {
	// FilePath is the path to the file that failed to parse
	FilePath string

	// Line is the line number where the error occurred (1-indexed, 0 if unknown)
	Line int

	// Column is the column number where the error occurred (1-indexed, 0 if unknown)
	Column int

	// Message describes the parsing error
	Message string

	// Cause is the underlying decoder error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %q at line %d, column %d: %s", e.FilePath, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %q at line %d: %s", e.FilePath, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %q: %s", e.FilePath, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ErrorList contains multiple errors collected while loading a directory.
// Some files may load while others fail.
type ErrorList struct {
	Errors []error
}

// Error implements the error interface.
func (e *ErrorList) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %v\n", i+1, err))
	}
	return sb.String()
}

// Unwrap returns the collected errors for errors.Is and errors.As.
func (e *ErrorList) Unwrap() []error {
	return e.Errors
}

// Add adds an error to the list.
func (e *ErrorList) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if the list contains any errors.
func (e *ErrorList) HasErrors() bool {
	return len(e.Errors) > 0
}

// ToError returns nil if there are no errors, the single error if there is one,
// or the ErrorList itself if there are multiple errors.
func (e *ErrorList) ToError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return e
}
