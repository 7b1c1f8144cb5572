package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the drivebridge module.
const TracerName = "drivebridge"

// Span attribute keys for operations.
const (
	// SpanAttrRoute is the matched HTTP route pattern attribute.
	SpanAttrRoute = "http.route"

	// SpanAttrOperation is the Drive operation type attribute.
	SpanAttrOperation = "drive.operation"

	// SpanAttrFileID is the Drive file identifier attribute.
	SpanAttrFileID = "drive.file_id"

	// SpanAttrKind is the media/archive kind attribute (video, image, folder, files).
	SpanAttrKind = "drivebridge.kind"

	// SpanAttrStatus is the operation status attribute.
	SpanAttrStatus = "drivebridge.status"

	// SpanAttrRangeStart and SpanAttrRangeEnd describe a byte-range fetch.
	SpanAttrRangeStart = "drive.range_start"
	SpanAttrRangeEnd   = "drive.range_end"
)

// SpanAttributeBuilder helps construct OpenTelemetry span attributes
// with consistent naming.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 8),
	}
}

// WithRoute adds the HTTP route pattern attribute.
func (b *SpanAttributeBuilder) WithRoute(route string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrRoute, route))
	return b
}

// WithOperation adds the Drive operation type attribute.
func (b *SpanAttributeBuilder) WithOperation(operation string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrOperation, operation))
	return b
}

// WithFile adds the Drive file id attribute.
func (b *SpanAttributeBuilder) WithFile(fileID string) *SpanAttributeBuilder {
	if fileID != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrFileID, fileID))
	}
	return b
}

// WithKind adds the media/archive kind attribute.
func (b *SpanAttributeBuilder) WithKind(kind string) *SpanAttributeBuilder {
	if kind != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrKind, kind))
	}
	return b
}

// WithRange adds byte-range attributes for ranged content fetches.
func (b *SpanAttributeBuilder) WithRange(start, end int64) *SpanAttributeBuilder {
	b.attrs = append(b.attrs,
		attribute.Int64(SpanAttrRangeStart, start),
		attribute.Int64(SpanAttrRangeEnd, end),
	)
	return b
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartSpan starts a new span with the given name and attributes.
// Returns the context with the span and the span itself.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartDriveSpan starts a span for a Google Drive API operation.
// Includes operation and file id attributes and client span kind.
func StartDriveSpan(ctx context.Context, operation, fileID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs, attribute.String(SpanAttrOperation, operation))
	if fileID != "" {
		allAttrs = append(allAttrs, attribute.String(SpanAttrFileID, fileID))
	}
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "drive."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddSpanEvent adds an event to the span with optional attributes.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the current span in context.
// Returns empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID from the current span in context.
// Returns empty string if no valid span is present.
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}

// SpanContextString returns a human-readable trace context string.
// Format: "trace_id=X span_id=Y" or empty string if no valid context.
func SpanContextString(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return "trace_id=" + span.SpanContext().TraceID().String() +
		" span_id=" + span.SpanContext().SpanID().String()
}
