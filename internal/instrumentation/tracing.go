package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the inboxgist package.
const TracerName = "github.com/inboxgist/inboxgist"

// Span attribute keys for operations.
const (
	// SpanAttrRoute is the API route attribute.
	SpanAttrRoute = "api.route"

	// SpanAttrService is the upstream service name attribute (gmail, llm).
	SpanAttrService = "upstream.service"

	// SpanAttrOperation is the operation type attribute.
	SpanAttrOperation = "upstream.operation"

	// SpanAttrAccount is the user account/email attribute.
	SpanAttrAccount = "api.account"

	// SpanAttrStatus is the operation status attribute.
	SpanAttrStatus = "api.status"

	// SpanAttrMessageID is the Gmail message identifier attribute.
	SpanAttrMessageID = "gmail.message_id"

	// SpanAttrQuery is the Gmail search query attribute.
	SpanAttrQuery = "gmail.query"

	// SpanAttrModel is the LLM model identifier attribute.
	SpanAttrModel = "llm.model"
)

// SpanAttributeBuilder helps construct OpenTelemetry span attributes
// with consistent naming.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 10),
	}
}

// WithRoute adds the API route attribute.
func (b *SpanAttributeBuilder) WithRoute(route string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrRoute, route))
	return b
}

// WithService adds the upstream service name attribute.
func (b *SpanAttributeBuilder) WithService(service string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrService, service))
	return b
}

// WithOperation adds the operation type attribute.
func (b *SpanAttributeBuilder) WithOperation(operation string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrOperation, operation))
	return b
}

// WithAccount adds the user account attribute.
func (b *SpanAttributeBuilder) WithAccount(account string) *SpanAttributeBuilder {
	if account != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrAccount, account))
	}
	return b
}

// WithMessageID adds the Gmail message identifier attribute.
func (b *SpanAttributeBuilder) WithMessageID(id string) *SpanAttributeBuilder {
	if id != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrMessageID, id))
	}
	return b
}

// WithQuery adds the Gmail search query attribute.
func (b *SpanAttributeBuilder) WithQuery(query string) *SpanAttributeBuilder {
	if query != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrQuery, query))
	}
	return b
}

// WithModel adds the LLM model identifier attribute.
func (b *SpanAttributeBuilder) WithModel(model string) *SpanAttributeBuilder {
	if model != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrModel, model))
	}
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

// StartRouteSpan starts a span for an API route invocation.
// Automatically adds the route attribute and sets appropriate span kind.
func StartRouteSpan(ctx context.Context, route string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrRoute, route))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "route."+route,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartGmailSpan starts a span for Gmail API operations.
// Includes service and operation attributes.
func StartGmailSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrService, ServiceGmail),
		attribute.String(SpanAttrOperation, operation),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "gmail."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartLLMSpan starts a span for LLM chat completion calls.
// Includes service and model attributes.
func StartLLMSpan(ctx context.Context, model string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrService, ServiceLLM),
		attribute.String(SpanAttrModel, model),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "llm.chat",
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
