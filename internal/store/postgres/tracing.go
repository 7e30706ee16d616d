package postgres

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// StoreTracerName is the name used for the postgres store tracer
	StoreTracerName = "github.com/stacklok/content-replicator/store/postgres"
)

const (
	attrSite      = attribute.Key("site.node_name")
	attrWorkspace = attribute.Key("workspace.name")
	attrNode      = attribute.Key("node.identifier")
	attrAsset     = attribute.Key("asset.identifier")
)

// startSpan starts a new span for database operations.
// If the tracer is nil, it returns a no-op span from the context.
func (s *Store) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	opts = append([]trace.SpanStartOption{trace.WithAttributes(semconv.DBSystemPostgreSQL)}, opts...)
	return s.tracer.Start(ctx, name, opts...)
}

// recordError records an error on a span without leaking SQL into the span status
func recordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
