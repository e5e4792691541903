// Package apperror defines the error taxonomy for the session module.
//
// Three classes of failure flow out of the session state machine:
//   - validation errors: bad input rejected before any network call
//     (e.g. an empty federated authorization code)
//   - transport errors: network failure or a non-2xx backend response
//   - stale-session errors: a previously stored token rejected by
//     /user/me at bootstrap
//
// Callers classify with errors.Is against the sentinels below; the
// AppError wrapper carries the human-readable message.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrTransport    = errors.New("transport error")
	ErrStaleSession = errors.New("stale session")
	ErrStorage      = errors.New("storage error")
)

type AppError struct {
	Err     error  // sentinel (and possibly a wrapped cause chain)
	Message string // human-readable error message
	Field   string // optional: input field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Transport wraps a network or HTTP-status failure from a backend call.
// The cause is kept in the chain so errors.Is can still see both the
// sentinel and the underlying error.
func Transport(op string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrTransport, cause),
		Message: fmt.Sprintf("%s failed: %v", op, cause),
	}
}

// StaleSession marks a stored token the backend no longer accepts.
func StaleSession(cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrStaleSession, cause),
		Message: "stored session is no longer valid",
	}
}

// Storage wraps a durable token-store failure.
func Storage(op string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrStorage, cause),
		Message: fmt.Sprintf("%s failed: %v", op, cause),
	}
}
