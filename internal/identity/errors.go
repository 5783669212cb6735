package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/containerd/errdefs"
)

// ErrNoDestination is reported when an input cannot be mapped to any
// actionable reference. It is a negative result rather than a failure.
var ErrNoDestination = fmt.Errorf("no actionable destination: %w", errdefs.ErrNotFound)

// ValidationError describes malformed client input: a handle, DID or
// fragment that fails its format rule, or a business rule violation.
type ValidationError struct {
	// Field is the offending field ("handle", "did", "fragment", ...)
	Field string
	// Value is the rejected value
	Value string
	// Reason is a short human-readable explanation
	Reason string
}

// Error returns the error message
func (e *ValidationError) Error() string {
	switch {
	case e.Field != "" && e.Reason != "":
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
	default:
		return e.Reason
	}
}

// Unwrap classifies the error as an invalid argument
func (*ValidationError) Unwrap() error { return errdefs.ErrInvalidArgument }

// NewValidationError creates a validation error for a field value
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NetworkError is a transport failure, timeout, malformed response or an
// unexpected HTTP status returned by a resolution service.
type NetworkError struct {
	URL        string
	StatusCode int
	Reason     string
	Cause      error
}

// Error returns the error message
func (e *NetworkError) Error() string {
	msg := "network error"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	if e.URL != "" {
		msg += " for URL " + e.URL
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the cause joined with the unavailable class
func (e *NetworkError) Unwrap() []error {
	if e.Cause == nil {
		return []error{errdefs.ErrUnavailable}
	}
	return []error{e.Cause, errdefs.ErrUnavailable}
}

// HandleNotFoundError is a definitive negative outcome of handle resolution.
type HandleNotFoundError struct {
	Handle string
}

// Error returns the error message
func (e *HandleNotFoundError) Error() string {
	return fmt.Sprintf("handle %q not found", e.Handle)
}

// Unwrap classifies the error as not found
func (*HandleNotFoundError) Unwrap() error { return errdefs.ErrNotFound }

// DIDResolutionError is a failed reverse (DID to handle) resolution.
type DIDResolutionError struct {
	DID        string
	Reason     string
	StatusCode int
	Cause      error
}

// Error returns the error message
func (e *DIDResolutionError) Error() string {
	msg := fmt.Sprintf("failed to resolve %s: %s", e.DID, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the cause joined with the failed-precondition class
func (e *DIDResolutionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{errdefs.ErrFailedPrecondition}
	}
	return []error{e.Cause, errdefs.ErrFailedPrecondition}
}

// RateLimitedError is server-signaled backpressure. RetryAfter is zero when
// the server gave no hint.
type RateLimitedError struct {
	URL        string
	RetryAfter time.Duration
}

// Error returns the error message
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by %s, retry after %s", e.URL, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited by %s", e.URL)
}

// Unwrap classifies the error as resource exhausted
func (*RateLimitedError) Unwrap() error { return errdefs.ErrResourceExhausted }

// RetryAfterSeconds returns the server hint in whole seconds
func (e *RateLimitedError) RetryAfterSeconds() int {
	return int(e.RetryAfter / time.Second)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
