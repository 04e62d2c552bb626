package domain

import (
	"errors"
	"fmt"
)

// Caller-visible failures. Everything else is an internal fault.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("access forbidden")
	ErrValidationFailed   = errors.New("validation failed")
	ErrDuplicate          = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrPartialDelete      = errors.New("partial delete failure")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
)

// Token verification failures. The session guard reports all of them as
// ErrUnauthorized.
var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
)

// ValidationError names the input that failed validation. It matches
// ErrValidationFailed under errors.Is.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Filename, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// Invalid builds a ValidationError that is not tied to a file.
func Invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPartialDelete) || errors.Is(err, ErrStoreUnavailable)
}
