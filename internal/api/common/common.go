// Package common provides shared HTTP utility functions for API handlers.
package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/containerd/errdefs"

	"github.com/atref/atref/internal/identity"
)

// StatusClientClosedRequest is reported when the caller went away before
// the lookup completed
const StatusClientClosedRequest = 499

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSONResponse writes a JSON response with the given data
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// WriteErrorResponse writes a standardized error response
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	WriteJSONResponse(w, ErrorResponse{Error: message}, statusCode)
}

// StatusForError maps an error class to an HTTP status
func StatusForError(err error) int {
	switch {
	case errdefs.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsResourceExhausted(err):
		return http.StatusTooManyRequests
	case errdefs.IsCanceled(err):
		return StatusClientClosedRequest
	case errdefs.IsDeadlineExceeded(err):
		return http.StatusGatewayTimeout
	case errdefs.IsUnavailable(err), errdefs.IsFailedPrecondition(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err with the status of its class. Rate limited
// responses carry the upstream Retry-After hint.
func WriteError(w http.ResponseWriter, err error) {
	var rl *identity.RateLimitedError
	if errors.As(err, &rl) && rl.RetryAfterSeconds() > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfterSeconds()))
	}

	status := StatusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	WriteErrorResponse(w, message, status)
}
