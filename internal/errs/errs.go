// Package errs provides structured domain errors with machine-readable codes.
package errs

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeValidation marks a malformed or out-of-range input record.
	CodeValidation Code = "VALIDATION"

	// CodeOrdering marks a character event whose chapter precedes the
	// character's latest recorded chapter.
	CodeOrdering Code = "ORDERING"

	// CodeDuplicate marks re-planting an existing foreshadowing id.
	CodeDuplicate Code = "DUPLICATE"

	// CodeNotFound marks an unknown character or foreshadowing id.
	CodeNotFound Code = "NOT_FOUND"

	// CodeState marks an illegal status transition.
	CodeState Code = "STATE"

	// CodeCollaboratorUnavailable marks a failed, timed-out, or malformed
	// collaborator call. Recovered locally via degraded mode where possible.
	CodeCollaboratorUnavailable Code = "COLLABORATOR_UNAVAILABLE"

	// CodeRevisionCapExceeded marks a chapter that exhausted its revision
	// attempts without passing. Surfaced to the caller, never auto-retried.
	CodeRevisionCapExceeded Code = "REVISION_CAP_EXCEEDED"
)

// Error is a domain error carrying a code and optional metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]any
	cause    error
}

// New creates a domain error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a domain error around an underlying cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithMeta attaches a metadata key to the error and returns it.
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	e.Metadata[key] = value
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the code from any error, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
