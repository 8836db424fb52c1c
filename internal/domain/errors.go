package domain

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline. Stage code wraps these with %w so the
// transport layer can map any failure to a stable error kind.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrDeadlineExceeded   = errors.New("deadline exceeded")
	ErrInternalInvariant  = errors.New("internal invariant violated")
	ErrNotFound           = errors.New("not found")
)

// ErrorKind is the stable machine-readable error classification surfaced
// to callers.
type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "INVALID_INPUT"
	KindCatalogUnavailable ErrorKind = "CATALOG_UNAVAILABLE"
	KindDeadlineExceeded   ErrorKind = "DEADLINE_EXCEEDED"
	KindInternalInvariant  ErrorKind = "INTERNAL_INVARIANT"
)

// PipelineError is the structured failure returned across the transport
// boundary. Message never contains raw biomarker values.
type PipelineError struct {
	Kind    ErrorKind `json:"kind"`
	Stage   Stage     `json:"stage,omitempty"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s at stage %s: %s", e.Kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying sentinel for errors.Is checks.
func (e *PipelineError) Unwrap() error {
	return e.cause
}

// LogFields returns structured logging fields for audit trails.
func (e *PipelineError) LogFields() map[string]any {
	return map[string]any{
		"error_kind":  string(e.Kind),
		"error_stage": string(e.Stage),
		"error_field": e.Field,
	}
}

// NewInvalidInput creates an INVALID_INPUT error with field-level detail.
func NewInvalidInput(field, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindInvalidInput,
		Message: message,
		Field:   field,
		cause:   ErrInvalidInput,
	}
}

// NewCatalogUnavailable creates a CATALOG_UNAVAILABLE error. No fallback
// catalog is ever served.
func NewCatalogUnavailable(message string) *PipelineError {
	return &PipelineError{
		Kind:    KindCatalogUnavailable,
		Message: message,
		cause:   ErrCatalogUnavailable,
	}
}

// NewDeadlineExceeded creates a DEADLINE_EXCEEDED error naming the stage
// that observed the expiry.
func NewDeadlineExceeded(stage Stage) *PipelineError {
	return &PipelineError{
		Kind:    KindDeadlineExceeded,
		Stage:   stage,
		Message: "request deadline exceeded, no partial protocol returned",
		cause:   ErrDeadlineExceeded,
	}
}

// NewInternalInvariant creates an INTERNAL_INVARIANT error. The request
// fails rather than returning a potentially unsafe output.
func NewInternalInvariant(stage Stage, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindInternalInvariant,
		Stage:   stage,
		Message: message,
		cause:   ErrInternalInvariant,
	}
}

// KindOf classifies any error into its stable kind. Unrecognized errors
// classify as INTERNAL_INVARIANT so nothing unsafe maps to a retryable
// status by accident.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrCatalogUnavailable):
		return KindCatalogUnavailable
	case errors.Is(err, ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindDeadlineExceeded
	default:
		return KindInternalInvariant
	}
}
