// Package orchestrator turns user input into canonical records by composing
// the adapter registry, the canonicalizer, the cache and the resolver.
package orchestrator

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/atref/atref/internal/adapters"
	"github.com/atref/atref/internal/cache"
	"github.com/atref/atref/internal/canonical"
	"github.com/atref/atref/internal/identity"
	"github.com/atref/atref/internal/otel"
)

// DefaultConcurrency bounds ResolveAll fan-out
const DefaultConcurrency = 4

// Resolver looks up the mappings the cache does not hold
type Resolver interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
	ResolveDID(ctx context.Context, did string) (handle string, found bool, err error)
}

// Config is the explicit per-instance configuration of an Orchestrator
type Config struct {
	// Degrade returns a partial record when a lookup fails instead of the error
	Degrade bool

	// Concurrency bounds the number of inputs ResolveAll works on at once
	Concurrency int

	// Tracer is optional; spans are skipped when nil
	Tracer trace.Tracer
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{Degrade: true, Concurrency: DefaultConcurrency}
}

// Orchestrator resolves raw input. It is safe for concurrent use.
type Orchestrator struct {
	cfg      Config
	registry *adapters.Registry
	cache    *cache.Cache
	resolver Resolver
}

// New creates an Orchestrator
func New(cfg Config, registry *adapters.Registry, c *cache.Cache, r Resolver) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Orchestrator{cfg: cfg, registry: registry, cache: c, resolver: r}
}

// Result is the outcome for one ResolveAll input
type Result struct {
	Input  string            `json:"input"`
	Record *canonical.Record `json:"record,omitempty"`
	Err    error             `json:"-"`
}

// ResolveInput maps a URL, at:// URI, handle, DID or fragment to a canonical
// record, filling in the missing half of the handle/DID pair when possible.
//
// Inputs that no adapter recognizes yield identity.ErrNoDestination.
// Malformed identifiers yield a *identity.ValidationError. Lookup failures
// are returned only when the configuration disables degrading.
func (o *Orchestrator) ResolveInput(ctx context.Context, raw string) (*canonical.Record, error) {
	ctx, span := otel.StartSpan(ctx, o.cfg.Tracer, "orchestrator.ResolveInput",
		trace.WithAttributes(otel.AttrInput.String(raw)))
	defer span.End()

	rec, err := o.resolveInput(ctx, raw)
	if err != nil && !errors.Is(err, identity.ErrNoDestination) {
		otel.RecordError(span, err)
	}
	if rec != nil {
		span.SetAttributes(otel.AttrCollection.String(rec.Collection))
	}
	return rec, err
}

func (o *Orchestrator) resolveInput(ctx context.Context, raw string) (*canonical.Record, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &identity.ValidationError{Field: "input", Reason: "missing identifier"}
	}

	fragment, sourceURL, err := o.fragment(raw)
	if err != nil {
		return nil, err
	}

	rec, err := canonical.Canonicalize(string(fragment))
	if err != nil {
		return nil, err
	}
	rec.SourceURL = sourceURL

	if err := o.complete(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ResolveAll resolves every input, at most Config.Concurrency at a time.
// Results keep the input order; per-input failures are reported in Result.Err.
func (o *Orchestrator) ResolveAll(ctx context.Context, inputs []string) ([]Result, error) {
	results := make([]Result, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, input := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := o.ResolveInput(gctx, input)
			results[i] = Result{Input: input, Record: rec, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CacheStats returns the cache statistics
func (o *Orchestrator) CacheStats() cache.Stats {
	return o.cache.Stats()
}

// ClearCache empties the cache
func (o *Orchestrator) ClearCache(ctx context.Context) {
	o.cache.Clear(ctx)
}

// Registry returns the adapter registry
func (o *Orchestrator) Registry() *adapters.Registry {
	return o.registry
}

// fragment extracts the raw fragment from input. URLs go through the adapter
// registry and then the generic heuristic; anything else is a fragment
// already. The second result is the source URL, empty for non-URL input.
//
// Input without a scheme whose first segment names a served host is tried
// as a link first. When nothing can be extracted from it, it is a handle
// fragment that happens to share the host's name, such as "bsky.app".
func (o *Orchestrator) fragment(raw string) (adapters.Fragment, string, error) {
	u, bare, ok := o.asURL(raw)
	if !ok {
		return adapters.Fragment(raw), "", nil
	}
	if f, ok := o.registry.Extract(u); ok {
		return f, raw, nil
	}
	if f, ok := adapters.Fallback(u); ok {
		return f, raw, nil
	}
	if bare {
		return adapters.Fragment(raw), "", nil
	}
	return "", raw, identity.ErrNoDestination
}

// asURL reports whether raw may be a web link. Links without a scheme count
// when their first segment is a host the registry serves; bare is true for
// those.
func (o *Orchestrator) asURL(raw string) (u *url.URL, bare, ok bool) {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "at:") || strings.HasPrefix(lower, "did:") {
		return nil, false, false
	}

	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, false, false
		}
		return u, false, true
	}

	host, _, _ := strings.Cut(raw, "/")
	if !o.registry.Serves(host) {
		return nil, false, false
	}
	u, err := url.Parse("https://" + raw)
	if err != nil {
		return nil, false, false
	}
	return u, true, true
}

// complete fills in the missing half of the identity, cache first, and
// rederives the URI and display path.
func (o *Orchestrator) complete(ctx context.Context, rec *canonical.Record) error {
	logger := logr.FromContextOrDiscard(ctx)
	span := trace.SpanFromContext(ctx)

	switch {
	case rec.Handle != "" && rec.DID == "":
		if did, ok := o.cache.GetByHandle(ctx, rec.Handle); ok {
			span.SetAttributes(otel.AttrCacheHit.Bool(true))
			rec.DID = did
			break
		}
		span.SetAttributes(otel.AttrCacheHit.Bool(false))

		did, err := o.resolver.ResolveHandle(ctx, rec.Handle)
		if err != nil {
			return o.degrade(ctx, err, "handle", rec.Handle)
		}
		rec.DID = did
		if err := o.cache.Put(ctx, rec.Handle, did); err != nil {
			logger.Error(err, "Failed to cache mapping", "handle", rec.Handle, "did", did)
		}

	case rec.DID != "" && rec.Handle == "":
		if handle, ok := o.cache.GetByDID(ctx, rec.DID); ok {
			span.SetAttributes(otel.AttrCacheHit.Bool(true))
			rec.Handle = handle
			break
		}
		span.SetAttributes(otel.AttrCacheHit.Bool(false))

		handle, found, err := o.resolver.ResolveDID(ctx, rec.DID)
		if err != nil {
			return o.degrade(ctx, err, "did", rec.DID)
		}
		if !found {
			break
		}
		rec.Handle = handle
		if err := o.cache.Put(ctx, handle, rec.DID); err != nil {
			logger.Error(err, "Failed to cache mapping", "handle", handle, "did", rec.DID)
		}
	}

	canonical.Derive(rec)
	return nil
}

// degrade decides whether a lookup failure ends the request
func (o *Orchestrator) degrade(ctx context.Context, err error, key, value string) error {
	if ctx.Err() != nil || !o.cfg.Degrade {
		return err
	}
	logr.FromContextOrDiscard(ctx).Info("Lookup failed, returning partial record",
		key, value, "error", err.Error())
	return nil
}
