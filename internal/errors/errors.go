package errors

import (
	"errors"
	"fmt"
)

// Error type constants
const (
	NotFound         = "NOT_FOUND"
	WorkflowNotFound = "WORKFLOW_NOT_FOUND"
	UnknownStepType  = "UNKNOWN_STEP_TYPE"
	ValidationError  = "VALIDATION_ERROR"
	IOError          = "IO_ERROR"
	Transient        = "TRANSIENT"
	StepFailed       = "STEP_FAILED"
	Timeout          = "TIMEOUT"
	Cancelled        = "CANCELLED"
)

// RunError is a structured error carried across engine boundaries.
type RunError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	RunID     string `json:"run_id,omitempty"`
	StepName  string `json:"step_name,omitempty"`
	Retryable bool   `json:"retryable"`
	Hint      string `json:"hint,omitempty"`
	Cause     error  `json:"-"`
}

func (e *RunError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.StepName != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Type, e.StepName, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// Is matches another *RunError by Type so that sentinels such as ErrNotFound
// work with errors.Is.
func (e *RunError) Is(target error) bool {
	t, ok := target.(*RunError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Type == e.Type
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound         = &RunError{Type: NotFound}
	ErrWorkflowNotFound = &RunError{Type: WorkflowNotFound}
	ErrUnknownStepType  = &RunError{Type: UnknownStepType}
	ErrValidation       = &RunError{Type: ValidationError}
	ErrIO               = &RunError{Type: IOError}
)

func NewNotFound(what, id string) *RunError {
	return &RunError{Type: NotFound, Message: fmt.Sprintf("%s %q not found", what, id)}
}

func NewWorkflowNotFound(name string) *RunError {
	return &RunError{
		Type:    WorkflowNotFound,
		Message: fmt.Sprintf("workflow %q not found", name),
		Hint:    "List available workflows with `orquestator workflows`",
	}
}

func NewUnknownStepType(stepType string) *RunError {
	return &RunError{
		Type:    UnknownStepType,
		Message: fmt.Sprintf("unknown step type %q", stepType),
	}
}

func NewValidationError(msg, hint string) *RunError {
	return &RunError{Type: ValidationError, Message: msg, Hint: hint}
}

func NewIOError(msg string, cause error) *RunError {
	return &RunError{Type: IOError, Message: msg, Cause: cause}
}

func NewTransient(msg string, cause error) *RunError {
	return &RunError{Type: Transient, Message: msg, Cause: cause, Retryable: true}
}

func NewStepError(stepName, msg, hint string) *RunError {
	return &RunError{Type: StepFailed, StepName: stepName, Message: msg, Hint: hint}
}

// TypeOf returns the RunError type of err, or "" when err carries none.
func TypeOf(err error) string {
	var rerr *RunError
	if errors.As(err, &rerr) {
		return rerr.Type
	}
	return ""
}

// HasType reports whether err is a RunError of the given type.
func HasType(err error, typ string) bool {
	return TypeOf(err) == typ
}
