package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atref/atref/internal/identity"
)

func TestStatusForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: identity.NewValidationError("handle", "x", "invalid handle"), want: http.StatusBadRequest},
		{name: "no destination", err: identity.ErrNoDestination, want: http.StatusNotFound},
		{name: "handle not found", err: &identity.HandleNotFoundError{Handle: "a.example"}, want: http.StatusNotFound},
		{name: "rate limited", err: &identity.RateLimitedError{URL: "u"}, want: http.StatusTooManyRequests},
		{name: "network", err: &identity.NetworkError{StatusCode: http.StatusBadGateway}, want: http.StatusBadGateway},
		{name: "did resolution", err: &identity.DIDResolutionError{DID: "did:web:a.example", Reason: "no handle"}, want: http.StatusBadGateway},
		{name: "wrapped", err: fmt.Errorf("resolve: %w", &identity.HandleNotFoundError{}), want: http.StatusNotFound},
		{name: "canceled", err: context.Canceled, want: StatusClientClosedRequest},
		{name: "attempt timeout", err: &identity.NetworkError{Cause: context.DeadlineExceeded}, want: http.StatusGatewayTimeout},
		{name: "unclassified", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusForError(tt.err))
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	t.Run("retry after header", func(t *testing.T) {
		t.Parallel()
		rr := httptest.NewRecorder()
		WriteError(rr, &identity.RateLimitedError{URL: "u", RetryAfter: 30 * time.Second})

		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "30", rr.Header().Get("Retry-After"))
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	})

	t.Run("internal errors are not echoed", func(t *testing.T) {
		t.Parallel()
		rr := httptest.NewRecorder()
		WriteError(rr, errors.New("secret detail"))

		require.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "secret detail")
		assert.Empty(t, rr.Header().Get("Retry-After"))
	})
}
