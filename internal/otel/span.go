// Package otel provides OpenTelemetry instrumentation utilities for the sync engine.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for sync context used across the application.
const (
	AttrRunID           = attribute.Key("sync.run_id")
	AttrSyncType        = attribute.Key("sync.type")
	AttrTable           = attribute.Key("sync.table")
	AttrTableCount      = attribute.Key("sync.tables")
	AttrDirection       = attribute.Key("sync.direction")
	AttrRecordsSynced   = attribute.Key("sync.records_synced")
	AttrConflicts       = attribute.Key("sync.conflicts")
	AttrRecordsRejected = attribute.Key("sync.records_rejected")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
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

// RecordError records an error on a span and sets the span status to error.
// The status description stays generic because store errors can carry SQL text
// and record values; the full error is kept on the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}

// RecordSuccess marks the span as completed successfully
func RecordSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}
