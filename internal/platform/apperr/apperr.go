// Package apperr defines the error taxonomy shared by services and HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers missing objects and objects outside the caller's tenant.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when an authenticated principal may not perform the action.
	ErrForbidden = errors.New("permission denied")
	// ErrUnauthenticated is returned when no principal is present.
	ErrUnauthenticated = errors.New("authentication credentials were not provided")
	// ErrMethodNotAllowed is returned for routes kept only to reject callers.
	ErrMethodNotAllowed = errors.New("method not allowed")
	// ErrBadRequest is a rejected request whose reason is a single detail message, not a field.
	ErrBadRequest = errors.New("bad request")
)

// NonFieldErrors is the field key for errors not bound to a single input field.
const NonFieldErrors = "non_field_errors"

// ValidationError reports malformed or policy-violating input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" || e.Field == NonFieldErrors {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid returns a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Invalidf returns a ValidationError for field with a formatted message.
func Invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsValidation unwraps err into a ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// DetailError carries a caller-facing message alongside one of the sentinels above.
type DetailError struct {
	Kind   error
	Detail string
}

func (e *DetailError) Error() string { return e.Detail }

func (e *DetailError) Unwrap() error { return e.Kind }

// NotFound returns ErrNotFound with a specific detail message.
func NotFound(detail string) error {
	return &DetailError{Kind: ErrNotFound, Detail: detail}
}

// BadRequest returns ErrBadRequest with a specific detail message.
func BadRequest(detail string) error {
	return &DetailError{Kind: ErrBadRequest, Detail: detail}
}

// MethodNotAllowed returns ErrMethodNotAllowed with a specific detail message.
func MethodNotAllowed(detail string) error {
	return &DetailError{Kind: ErrMethodNotAllowed, Detail: detail}
}

// Unauthenticated returns ErrUnauthenticated with a specific detail message.
func Unauthenticated(detail string) error {
	return &DetailError{Kind: ErrUnauthenticated, Detail: detail}
}

// Forbidden returns ErrForbidden with a specific detail message.
func Forbidden(detail string) error {
	return &DetailError{Kind: ErrForbidden, Detail: detail}
}
