package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the courier tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("courier")

// SpanManager handles trace span lifecycle for Publish calls.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartPublishSpan starts a span covering one Publish delivery loop.
	// Returns the context with span and the span itself.
	StartPublishSpan(ctx context.Context, messageType string) (context.Context, trace.Span)

	// EndSpan completes a delivery span, recording how many subscribers
	// were delivered to.
	EndSpan(span trace.Span, delivered int)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartPublishSpan starts a span covering one Publish delivery loop.
func (m *otelSpanManager) StartPublishSpan(ctx context.Context, messageType string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "courier.publish",
		trace.WithAttributes(
			attribute.String("message_type", messageType),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan completes a delivery span.
func (m *otelSpanManager) EndSpan(span trace.Span, delivered int) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.Int("delivered", delivered))
	span.End()
}
