// Package errors defines the API error taxonomy. Every failure that reaches a handler is an
// *Error carrying the HTTP status and a stable machine-readable code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a coded failure. Err holds the underlying cause and is never serialised.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is compares codes, so a clone with a custom message still matches its sentinel.
func (e *Error) Is(target error) bool {
	var other *Error
	if e == nil || !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithDetails returns a copy of e carrying per-field messages.
func (e *Error) WithDetails(details map[string]string) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	if len(details) > 0 {
		cp.Details = details
	}
	return &cp
}

// New creates a sentinel.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap creates a coded error around cause.
func Wrap(cause error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: cause}
}

var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrUnavailable        = New("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "service unavailable")

	// ErrCacheMiss never reaches clients; the cache layer treats it as "load from storage".
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError returns err as an *Error, treating anything untyped as internal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err, ErrInternal.Message)
}

// Clone copies a sentinel, replacing its message when one is given.
func Clone(sentinel *Error, message string) *Error {
	if sentinel == nil {
		return nil
	}
	cp := *sentinel
	if message != "" {
		cp.Message = message
	}
	return &cp
}

// Internal wraps cause as a 500 with a client-safe message.
func Internal(cause error, message string) *Error {
	return Wrap(cause, ErrInternal.Code, ErrInternal.Status, message)
}
