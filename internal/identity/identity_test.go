package identity

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHandle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handle  string
		wantErr bool
	}{
		{name: "two labels", handle: "why.example"},
		{name: "bsky.social subdomain", handle: "alice.bsky.social"},
		{name: "hyphen inside label", handle: "my-name.example.com"},
		{name: "mixed case is accepted", handle: "Alice.Example.com"},
		{name: "empty", handle: "", wantErr: true},
		{name: "single label", handle: "alice", wantErr: true},
		{name: "empty label", handle: "alice..bsky.social", wantErr: true},
		{name: "numeric tld", handle: "alice.bsky.123", wantErr: true},
		{name: "leading hyphen", handle: "-alice.example", wantErr: true},
		{name: "underscore", handle: "al_ice.example", wantErr: true},
		{name: "too long", handle: strings.Repeat("a", 60) + "." + strings.Repeat("b.", 100) + "com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateHandle(tt.handle)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				assert.True(t, errdefs.IsInvalidArgument(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseDID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		did        string
		wantMethod DIDMethod
		wantDomain string
		wantPath   []string
		wantErr    string
	}{
		{
			name:       "plc",
			did:        "did:plc:ewvi7nxzyoun6zhxrhs64oiz",
			wantMethod: DIDMethodPLC,
		},
		{
			name:       "web",
			did:        "did:web:example.com",
			wantMethod: DIDMethodWeb,
			wantDomain: "example.com",
			wantPath:   []string{},
		},
		{
			name:       "web with encoded port and path",
			did:        "did:web:localhost%3A8080:user:alice",
			wantMethod: DIDMethodWeb,
			wantDomain: "localhost:8080",
			wantPath:   []string{"user", "alice"},
		},
		{name: "missing prefix", did: "plc:abc", wantErr: "missing did: prefix"},
		{name: "missing identifier", did: "did:plc:", wantErr: "missing method-specific identifier"},
		{name: "plc too short", did: "did:plc:abc", wantErr: "did:plc identifier"},
		{name: "plc uppercase", did: "did:plc:EWVI7NXZYOUN6ZHXRHS64OIZ", wantErr: "did:plc identifier"},
		{name: "web invalid domain", did: "did:web:not_a_domain", wantErr: "valid domain name"},
		{name: "unsupported method", did: "did:key:z6Mkabc", wantErr: "unsupported DID method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			did, err := ParseDID(tt.did)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, did.Method)
			assert.Equal(t, tt.did, did.String())
			if tt.wantMethod == DIDMethodWeb {
				assert.True(t, did.IsDomainDerived())
				assert.Equal(t, tt.wantDomain, did.Domain)
				assert.Equal(t, tt.wantPath, did.Path)
			} else {
				assert.False(t, did.IsDomainDerived())
			}
		})
	}
}

func TestErrorClasses(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")

	assert.True(t, errdefs.IsNotFound(ErrNoDestination))
	assert.True(t, errdefs.IsNotFound(&HandleNotFoundError{Handle: "a.example"}))
	assert.True(t, errdefs.IsUnavailable(&NetworkError{Cause: cause}))
	assert.ErrorIs(t, &NetworkError{Cause: cause}, cause)
	assert.True(t, errdefs.IsFailedPrecondition(&DIDResolutionError{DID: "did:web:a.example", Reason: "x"}))
	assert.True(t, errdefs.IsResourceExhausted(&RateLimitedError{RetryAfter: 3 * time.Second}))
	assert.Equal(t, 3, (&RateLimitedError{RetryAfter: 3 * time.Second}).RetryAfterSeconds())
}

func TestNetworkErrorMessage(t *testing.T) {
	t.Parallel()

	err := &NetworkError{URL: "https://example.com/x", StatusCode: 502, Reason: "unexpected status"}
	assert.Equal(t, "HTTP 502 for URL https://example.com/x: unexpected status", err.Error())
}
