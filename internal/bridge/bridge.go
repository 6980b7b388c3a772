// Package bridge talks to the task application that actually applies mutations.
//
// A Bridge executes one command at a time and reports failures as *Error with a
// stable Code. Two implementations exist: OSAScript drives OmniFocus through a
// JXA script run by osascript, and Memory keeps entities in process for tests
// and dry runs. Serialized wraps either to give a process-wide single lane with
// pacing between calls.
package bridge

import (
	"context"
	"errors"
	"fmt"
)

// Command is one mutation sent to the application.
type Command struct {
	Kind    string         `json:"kind"`
	Target  string         `json:"target"`
	Payload map[string]any `json:"payload"`
}

// ReferenceFields are the payload keys whose string value names another
// entity. Every other key is passed to the application untouched.
var ReferenceFields = []string{"id", "project_id", "parent_id", "folder_id"}

// ReferenceListFields are the payload keys holding a list of entity ids.
var ReferenceListFields = []string{"tag_ids"}

// Response is a successful command result. RealID is the application's
// identifier for the affected entity.
type Response struct {
	RealID string         `json:"id"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Status describes bridge availability.
type Status struct {
	Kind      string         `json:"kind"`
	Available bool           `json:"available"`
	Detail    string         `json:"detail,omitempty"`
	Entities  map[string]int `json:"entities,omitempty"`
	Calls     int64          `json:"calls"`
}

// Bridge executes commands against the task application.
type Bridge interface {
	// Execute applies cmd. Failures are returned as *Error.
	Execute(ctx context.Context, cmd Command) (Response, error)
	// Status probes the application without mutating it.
	Status(ctx context.Context) (Status, error)
}

// Code classifies a bridge failure.
type Code string

const (
	CodeTargetNotFound   Code = "target_not_found"
	CodeValidationFailed Code = "validation_failed"
	CodeUnavailable      Code = "unavailable"
	CodeTimeout          Code = "timeout"
	CodeScriptError      Code = "script_error"
	CodeInvalidResponse  Code = "invalid_response"
	CodeCancelled        Code = "cancelled"
)

// Error is a structured bridge failure.
type Error struct {
	Code       Code   `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a bridge error.
func NewError(code Code, message, suggestion string) *Error {
	return &Error{Code: code, Message: message, Suggestion: suggestion}
}

// AsError converts any error returned by a Bridge into *Error. Context errors
// become cancelled or timeout; anything else unstructured is a script error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	switch {
	case errors.Is(err, context.Canceled):
		return NewError(CodeCancelled, err.Error(), "")
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(CodeTimeout, err.Error(), "Retry with fewer operations or a longer timeout")
	}
	return NewError(CodeScriptError, err.Error(), "")
}

// IsCode reports whether err is a bridge error with the given code.
func IsCode(err error, code Code) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}
