package replacer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoParser is returned when a rule has conditions but no parser was
// supplied to compile them.
var ErrNoParser = errors.New("no condition parser configured")

// ValidationError lists every invariant a rule violates.
type ValidationError struct {
	// Source identifies the rule, typically its file path.
	Source string

	// Violations holds one message per violated invariant.
	Violations []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("invalid rule %q: %s", e.Source, e.Violations[0])
	}
	return fmt.Sprintf("invalid rule %q: %d violations: %s", e.Source, len(e.Violations), strings.Join(e.Violations, "; "))
}

// ConditionError reports a condition expression that failed to compile.
type ConditionError struct {
	// Index is the position of the expression in the rule's condition list.
	Index int

	// Expression is the source text that failed.
	Expression string

	// Cause is the parser error.
	Cause error
}

// Error implements the error interface.
func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition %d %q: %v", e.Index, e.Expression, e.Cause)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *ConditionError) Unwrap() error {
	return e.Cause
}
