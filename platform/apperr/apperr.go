// Package apperr provides standardized domain error types for the application.
// The dialer core returns these typed errors, and the HTTP layer maps them to
// status codes the widget uses to decide retry vs. auto-skip vs. re-login.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindValidation indicates a caller bug: missing phone, missing session fields.
	KindValidation
	// KindUnauthorized indicates the borrowed session was rejected upstream (401/403).
	KindUnauthorized
	// KindUnreachable indicates the gateway reported an invalid or unreachable
	// destination; the caller should route to the auto-skip path, not retry.
	KindUnreachable
	// KindUpstream indicates a transient collaborator failure (dial or hang-up);
	// the operator may retry.
	KindUpstream
	// KindConflict indicates an operation was invoked while a previous one for
	// the same call is still in flight.
	KindConflict
	// KindConfiguration indicates no usable configuration could be resolved,
	// e.g. no lead view id from any source.
	KindConfiguration
	// KindNotFound indicates a referenced resource does not exist.
	KindNotFound
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUnreachable:
		return http.StatusUnprocessableEntity
	case KindUpstream:
		return http.StatusBadGateway
	case KindConflict:
		return http.StatusConflict
	case KindConfiguration:
		return http.StatusPreconditionFailed
	case KindNotFound:
		return http.StatusNotFound
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails returns the error with additional details.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for common error types.

// Validation creates a validation error (caller bug, never retried).
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Unauthorized creates a session-expired error.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// Unreachable creates an unreachable-destination error.
func Unreachable(message string) *Error {
	return New(KindUnreachable, message)
}

// Upstream creates a transient upstream-failure error.
func Upstream(message string) *Error {
	return New(KindUpstream, message)
}

// Conflict creates a conflict error (operation already in flight).
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Configuration creates a configuration-resolution error.
func Configuration(message string) *Error {
	return New(KindConfiguration, message)
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// GetKind extracts the error kind from an error.
// Returns KindUnknown if the error is not an *Error.
func GetKind(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
