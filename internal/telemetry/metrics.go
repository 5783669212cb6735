// Package telemetry provides OpenTelemetry instrumentation for the resolution engine.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// ResolverMetricsMeterName is the name used for the resolver metrics meter
	ResolverMetricsMeterName = "github.com/atref/atref/resolver"

	// CacheMetricsMeterName is the name used for the cache metrics meter
	CacheMetricsMeterName = "github.com/atref/atref/cache"
)

// ResolverMetrics holds the OpenTelemetry instruments for network resolution
type ResolverMetrics struct {
	lookupDuration metric.Float64Histogram
	attempts       metric.Int64Counter
}

// NewResolverMetrics creates a new ResolverMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewResolverMetrics(provider metric.MeterProvider) (*ResolverMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ResolverMetricsMeterName)

	lookupDuration, err := meter.Float64Histogram(
		"atref_resolver_lookup_duration_seconds",
		metric.WithDescription("Duration of resolver lookups including retries, in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20),
	)
	if err != nil {
		return nil, err
	}

	attempts, err := meter.Int64Counter(
		"atref_resolver_attempts_total",
		metric.WithDescription("Number of HTTP attempts issued by the resolver"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	return &ResolverMetrics{
		lookupDuration: lookupDuration,
		attempts:       attempts,
	}, nil
}

// RecordLookup records one completed lookup and its outcome
func (m *ResolverMetrics) RecordLookup(ctx context.Context, operation, outcome string, duration time.Duration) {
	if m == nil || m.lookupDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	}

	m.lookupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAttempt records one HTTP attempt
func (m *ResolverMetrics) RecordAttempt(ctx context.Context, operation string) {
	if m == nil || m.attempts == nil {
		return
	}

	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// CacheMetrics holds the OpenTelemetry instruments for the mapping cache
type CacheMetrics struct {
	lookups         metric.Int64Counter
	persistFailures metric.Int64Counter
}

// NewCacheMetrics creates a new CacheMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewCacheMetrics(provider metric.MeterProvider) (*CacheMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(CacheMetricsMeterName)

	lookups, err := meter.Int64Counter(
		"atref_cache_lookups_total",
		metric.WithDescription("Number of cache lookups by direction and result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	persistFailures, err := meter.Int64Counter(
		"atref_cache_persist_failures_total",
		metric.WithDescription("Number of failed snapshot saves after cache mutations"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &CacheMetrics{
		lookups:         lookups,
		persistFailures: persistFailures,
	}, nil
}

// RecordLookup records a cache lookup. Direction is "handle" or "did".
func (m *CacheMetrics) RecordLookup(ctx context.Context, direction string, hit bool) {
	if m == nil || m.lookups == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("direction", direction),
		attribute.Bool("hit", hit),
	}

	m.lookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPersistFailure records a failed snapshot save
func (m *CacheMetrics) RecordPersistFailure(ctx context.Context) {
	if m == nil || m.persistFailures == nil {
		return
	}

	m.persistFailures.Add(ctx, 1)
}
