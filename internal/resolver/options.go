package resolver

import (
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/atref/atref/internal/telemetry"
)

const (
	// DefaultServiceURL is the public AppView used for handle resolution
	DefaultServiceURL = "https://public.api.bsky.app"

	// DefaultRequestTimeout bounds every single HTTP attempt
	DefaultRequestTimeout = 5 * time.Second

	// DefaultMaxRetries is the number of additional attempts after a transport failure
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the first backoff delay before jitter
	DefaultBaseDelay = 100 * time.Millisecond
)

// ReverseFailurePolicy decides what ResolveDID does with a failed document lookup.
type ReverseFailurePolicy string

const (
	// ReverseFail surfaces every DIDResolutionError to the caller
	ReverseFail ReverseFailurePolicy = "fail"

	// ReverseFallback reports "no handle" instead of a DIDResolutionError
	ReverseFallback ReverseFailurePolicy = "fallback"
)

// ParseReverseFailurePolicy parses a policy name; empty means ReverseFail.
func ParseReverseFailurePolicy(s string) (ReverseFailurePolicy, error) {
	switch ReverseFailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReverseFail:
		return ReverseFail, nil
	case ReverseFallback:
		return ReverseFallback, nil
	default:
		return "", fmt.Errorf("unknown reverse failure policy %q: expected %s or %s", s, ReverseFail, ReverseFallback)
	}
}

// Option configures a Resolver
type Option func(*Resolver)

// WithServiceURL sets the base URL of the handle resolution service
func WithServiceURL(serviceURL string) Option {
	return func(r *Resolver) {
		r.serviceURL = strings.TrimSuffix(serviceURL, "/")
	}
}

// WithRequestTimeout sets the per-attempt timeout
func WithRequestTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = timeout
	}
}

// WithMaxRetries sets how many additional attempts follow a transport failure
func WithMaxRetries(retries uint) Option {
	return func(r *Resolver) {
		r.maxRetries = retries
	}
}

// WithBaseDelay sets the first backoff delay
func WithBaseDelay(delay time.Duration) Option {
	return func(r *Resolver) {
		r.baseDelay = delay
	}
}

// WithJitterSource replaces the uniform [0,1) source used for jitter
func WithJitterSource(random func() float64) Option {
	return func(r *Resolver) {
		r.random = random
	}
}

// WithReverseFailurePolicy sets the reverse resolution failure policy
func WithReverseFailurePolicy(policy ReverseFailurePolicy) Option {
	return func(r *Resolver) {
		r.policy = policy
	}
}

// WithDIDWebScheme sets the scheme used to fetch did:web documents
func WithDIDWebScheme(scheme string) Option {
	return func(r *Resolver) {
		r.webScheme = scheme
	}
}

// WithMetrics sets the resolver metrics
func WithMetrics(metrics *telemetry.ResolverMetrics) Option {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// WithTracer sets the tracer used for lookup spans
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Resolver) {
		r.tracer = tracer
	}
}
