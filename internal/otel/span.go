// Package otel holds the tracing helpers shared by the resolver and the
// orchestrator.
package otel

import (
	"context"

	"github.com/containerd/errdefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attributes for identities and lookups
const (
	AttrHandle     = attribute.Key("atproto.handle")
	AttrDID        = attribute.Key("atproto.did")
	AttrInput      = attribute.Key("atref.input")
	AttrCacheHit   = attribute.Key("atref.cache_hit")
	AttrCollection = attribute.Key("atproto.collection")
)

// StartSpan opens a child span on tracer. With no tracer configured the
// span already in ctx, usually a non-recording one, is returned as is.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError marks span as failed. The error text goes into an exception
// event; the status only carries the error class, since inputs and
// handles end up in error messages.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, errorClass(err))
}

func errorClass(err error) string {
	switch {
	case errdefs.IsInvalidArgument(err):
		return "invalid argument"
	case errdefs.IsNotFound(err):
		return "not found"
	case errdefs.IsDeadlineExceeded(err):
		return "deadline exceeded"
	case errdefs.IsUnavailable(err):
		return "unavailable"
	default:
		return "lookup failed"
	}
}
