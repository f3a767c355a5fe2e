package domain

import (
	"errors"
)

var (
	// ErrValidation marks bad client input. Always a 400, never forwarded upstream.
	ErrValidation = errors.New("validation failed")
	// ErrRateLimited marks a request rejected by the rate limiter.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrUpstream marks a completion gateway failure.
	ErrUpstream = errors.New("completion gateway failure")
	// ErrConfigurationMissing marks a mode with no resolvable prompt.
	ErrConfigurationMissing = errors.New("configuration missing")
)

// ValidationError carries a client-facing message.
type ValidationError struct {
	Message string
}

// NewValidationError returns a ValidationError with the given message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }
