package batch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes request-level and internal batch errors.
type ErrorCode string

const (
	// ErrCodeInvalidRequest indicates a malformed request or operation.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrCodeDuplicateTempID indicates two operations declare the same temp id.
	ErrCodeDuplicateTempID ErrorCode = "DUPLICATE_TEMP_ID"

	// ErrCodeUnresolvedReference indicates a reference to an undeclared temp id.
	ErrCodeUnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"

	// ErrCodeCircularDependency indicates the references form a cycle.
	ErrCodeCircularDependency ErrorCode = "CIRCULAR_DEPENDENCY"

	// ErrCodeSchedulingInvariant indicates the scheduler let an operation run
	// before something it depends on. It is a bug, not bad input.
	ErrCodeSchedulingInvariant ErrorCode = "SCHEDULING_INVARIANT_VIOLATION"
)

// Error is a batch error with structured diagnostics.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Operations lists the sequence indices involved.
	Operations []int `json:"operations,omitempty"`

	// Cycle is the first cycle found, as temp ids with the first id repeated
	// at the end.
	Cycle []string `json:"cycle,omitempty"`

	// Cycles holds every cycle found, Cycle included.
	Cycles [][]string `json:"cycles,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Operations) > 0 {
		return fmt.Sprintf("%s: %s (operations=%v)", e.Code, e.Message, e.Operations)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// PreExecution reports whether the error rejected the request before any
// bridge call.
func (e *Error) PreExecution() bool {
	return e.Code != ErrCodeSchedulingInvariant
}

func newError(code ErrorCode, ops []int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Operations: ops}
}

func cycleError(cycles [][]string, ops []int) *Error {
	parts := make([]string, len(cycles))
	for i, c := range cycles {
		parts[i] = strings.Join(c, " -> ")
	}
	msg := fmt.Sprintf("circular dependency: %s", parts[0])
	if len(cycles) > 1 {
		msg = fmt.Sprintf("%d circular dependencies: %s", len(cycles), strings.Join(parts, "; "))
	}
	return &Error{
		Code:       ErrCodeCircularDependency,
		Message:    msg,
		Operations: ops,
		Cycle:      cycles[0],
		Cycles:     cycles,
	}
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func hasCode(err error, code ErrorCode) bool {
	be, ok := AsError(err)
	return ok && be.Code == code
}

// IsInvalidRequest returns true if the request failed shape validation.
func IsInvalidRequest(err error) bool { return hasCode(err, ErrCodeInvalidRequest) }

// IsDuplicateTempID returns true for duplicate temp id errors.
func IsDuplicateTempID(err error) bool { return hasCode(err, ErrCodeDuplicateTempID) }

// IsUnresolvedReference returns true for unresolved reference errors.
func IsUnresolvedReference(err error) bool { return hasCode(err, ErrCodeUnresolvedReference) }

// IsCircularDependency returns true for cycle errors.
func IsCircularDependency(err error) bool { return hasCode(err, ErrCodeCircularDependency) }

// IsSchedulingInvariant returns true for internal scheduling faults.
func IsSchedulingInvariant(err error) bool { return hasCode(err, ErrCodeSchedulingInvariant) }

// IsRejection returns true if err rejected the request before execution.
func IsRejection(err error) bool {
	be, ok := AsError(err)
	return ok && be.PreExecution()
}
