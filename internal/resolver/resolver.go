// Package resolver looks up handle to DID mappings, and back, over HTTP.
//
// Every lookup issues GET requests through an injected httpclient.Client.
// Each attempt is bounded by its own timeout. Transport failures and
// timeouts are retried with exponential backoff and jitter; definitive
// answers (404, 429, other statuses, malformed bodies) are never retried.
package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"

	"github.com/atref/atref/internal/httpclient"
	"github.com/atref/atref/internal/identity"
	"github.com/atref/atref/internal/otel"
	"github.com/atref/atref/internal/telemetry"
)

const (
	resolveHandlePath = "/xrpc/com.atproto.identity.resolveHandle"
	wellKnownDocument = "/.well-known/did.json"

	opResolveHandle = "resolve_handle"
	opResolveDID    = "resolve_did"

	unresolvableHandleMessage = "Unable to resolve handle"
)

// Resolver converts handles to DIDs and domain-derived DIDs to handles.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	client     httpclient.Client
	serviceURL string
	timeout    time.Duration
	maxRetries uint
	baseDelay  time.Duration
	random     func() float64
	policy     ReverseFailurePolicy
	webScheme  string
	metrics    *telemetry.ResolverMetrics
	tracer     trace.Tracer
	now        func() time.Time
}

// New creates a Resolver that issues requests through client.
func New(client httpclient.Client, opts ...Option) *Resolver {
	r := &Resolver{
		client:     client,
		serviceURL: DefaultServiceURL,
		timeout:    DefaultRequestTimeout,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		policy:     ReverseFail,
		webScheme:  "https",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveHandle returns the DID a handle currently points at.
func (r *Resolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	start := time.Now()
	ctx, span := otel.StartSpan(ctx, r.tracer, "resolver.ResolveHandle",
		trace.WithAttributes(otel.AttrHandle.String(handle)))
	defer span.End()

	did, err := r.resolveHandle(ctx, handle)
	otel.RecordError(span, err)
	r.metrics.RecordLookup(ctx, opResolveHandle, outcome(err), time.Since(start))
	return did, err
}

func (r *Resolver) resolveHandle(ctx context.Context, handle string) (string, error) {
	if err := identity.ValidateHandle(handle); err != nil {
		return "", err
	}

	endpoint := r.serviceURL + resolveHandlePath + "?" + url.Values{"handle": {handle}}.Encode()
	resp, err := r.fetch(ctx, opResolveHandle, endpoint)
	if err != nil {
		return "", &identity.NetworkError{URL: endpoint, Reason: "transport failure", Cause: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := validateHandleResponse(resp.Body); err != nil {
			return "", &identity.NetworkError{
				URL: endpoint, StatusCode: resp.StatusCode, Reason: "malformed response", Cause: err,
			}
		}
		did := gjson.GetBytes(resp.Body, "did").String()
		if err := identity.ValidateDID(did); err != nil {
			return "", &identity.NetworkError{
				URL: endpoint, StatusCode: resp.StatusCode, Reason: "malformed response", Cause: err,
			}
		}
		return did, nil

	case resp.StatusCode == http.StatusNotFound:
		return "", &identity.HandleNotFoundError{Handle: handle}

	case resp.StatusCode == http.StatusBadRequest && isUnresolvableHandle(resp.Body):
		return "", &identity.HandleNotFoundError{Handle: handle}

	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &identity.RateLimitedError{
			URL:        endpoint,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), r.now()),
		}

	default:
		return "", &identity.NetworkError{URL: endpoint, StatusCode: resp.StatusCode, Reason: "unexpected status"}
	}
}

// ResolveDID returns the handle a DID claims in its document. found is false
// when the DID has no reverse mapping: did:plc identifiers are not looked up,
// and documents without an at:// alias name no handle.
func (r *Resolver) ResolveDID(ctx context.Context, did string) (handle string, found bool, err error) {
	start := time.Now()
	ctx, span := otel.StartSpan(ctx, r.tracer, "resolver.ResolveDID",
		trace.WithAttributes(otel.AttrDID.String(did)))
	defer span.End()

	handle, found, err = r.resolveDID(ctx, did)
	r.metrics.RecordLookup(ctx, opResolveDID, outcome(err), time.Since(start))

	var derr *identity.DIDResolutionError
	if err != nil && r.policy == ReverseFallback && errors.As(err, &derr) {
		logr.FromContextOrDiscard(ctx).Info("Reverse resolution failed, continuing without handle",
			"did", did, "reason", derr.Reason)
		return "", false, nil
	}

	otel.RecordError(span, err)
	return handle, found, err
}

func (r *Resolver) resolveDID(ctx context.Context, did string) (string, bool, error) {
	parsed, err := identity.ParseDID(did)
	if err != nil {
		return "", false, err
	}
	if !parsed.IsDomainDerived() {
		return "", false, nil
	}

	docURL := r.documentURL(parsed)
	resp, err := r.fetch(ctx, opResolveDID, docURL)
	if err != nil {
		return "", false, &identity.DIDResolutionError{DID: did, Reason: "document fetch failed", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, &identity.DIDResolutionError{
			DID: did, Reason: "unexpected status", StatusCode: resp.StatusCode,
		}
	}
	if !gjson.ValidBytes(resp.Body) {
		return "", false, &identity.DIDResolutionError{DID: did, Reason: "malformed document"}
	}
	if id := gjson.GetBytes(resp.Body, "id"); id.Exists() && id.String() != did {
		return "", false, &identity.DIDResolutionError{DID: did, Reason: "document id mismatch"}
	}

	for _, alias := range gjson.GetBytes(resp.Body, "alsoKnownAs").Array() {
		rest, ok := strings.CutPrefix(alias.String(), "at://")
		if !ok {
			continue
		}
		handle, _, _ := strings.Cut(rest, "/")
		if err := identity.ValidateHandle(handle); err != nil {
			return "", false, &identity.DIDResolutionError{DID: did, Reason: "invalid handle in document", Cause: err}
		}
		return handle, true, nil
	}

	return "", false, nil
}

// documentURL derives the did.json location of a did:web identifier
func (r *Resolver) documentURL(did identity.DID) string {
	base := r.webScheme + "://" + did.Domain
	if len(did.Path) == 0 {
		return base + wellKnownDocument
	}
	return base + "/" + strings.Join(did.Path, "/") + "/did.json"
}

// fetch issues the GET with per-attempt timeouts, retrying transport failures.
func (r *Resolver) fetch(ctx context.Context, operation, endpoint string) (*httpclient.Response, error) {
	logger := logr.FromContextOrDiscard(ctx)

	get := func() (*httpclient.Response, error) {
		r.metrics.RecordAttempt(ctx, operation)

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		resp, err := r.client.Get(attemptCtx, endpoint)
		if err != nil {
			// The caller gave up; further attempts cannot succeed
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	}

	return backoff.Retry(ctx, get,
		backoff.WithBackOff(newJitteredBackOff(r.baseDelay, r.random)),
		backoff.WithMaxTries(r.maxRetries+1),
		backoff.WithNotify(func(err error, delay time.Duration) {
			logger.V(1).Info("Retrying request", "url", endpoint, "error", err.Error(), "delay", delay)
		}),
	)
}

// isUnresolvableHandle matches the XRPC error body returned for unknown handles
func isUnresolvableHandle(body []byte) bool {
	return strings.Contains(gjson.GetBytes(body, "message").String(), unresolvableHandleMessage)
}

// parseRetryAfter accepts delta-seconds or an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d.Truncate(time.Second)
		}
	}
	return 0
}

// outcome labels a lookup result for metrics
func outcome(err error) string {
	var (
		validation *identity.ValidationError
		notFound   *identity.HandleNotFoundError
		limited    *identity.RateLimitedError
		didErr     *identity.DIDResolutionError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &validation):
		return "invalid"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &limited):
		return "rate_limited"
	case errors.As(err, &didErr):
		return "did_error"
	default:
		return "network_error"
	}
}
