// Package observability provides production-grade observability for the
// courier bus: metrics and distributed tracing via OpenTelemetry.
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records bus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPublish records one Publish call: how many subscribers were
	// delivered to and how long the full delivery loop took.
	RecordPublish(ctx context.Context, messageType string, delivered int, duration time.Duration)

	// RecordFault records a recovered subscriber panic.
	RecordFault(ctx context.Context, messageType, stage string)

	// RecordSweep records expired subscriptions removed during a Publish.
	RecordSweep(ctx context.Context, messageType string, removed int)

	// RecordSubscriptionChange adjusts the live subscription count.
	RecordSubscriptionChange(messageType string, delta int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	publishes      metric.Int64Counter
	deliveries     metric.Int64Counter
	publishLatency metric.Float64Histogram
	faults         metric.Int64Counter
	expired        metric.Int64Counter
	liveSubs       metric.Int64UpDownCounter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("courier")

	publishes, err := meter.Int64Counter("courier.publishes",
		metric.WithDescription("Number of Publish calls"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("courier.deliveries",
		metric.WithDescription("Number of handler invocations"),
	)
	if err != nil {
		return nil, err
	}

	publishLatency, err := meter.Float64Histogram("courier.publish.latency_ms",
		metric.WithDescription("Publish delivery-loop latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	faults, err := meter.Int64Counter("courier.faults",
		metric.WithDescription("Number of recovered subscriber panics"),
	)
	if err != nil {
		return nil, err
	}

	expired, err := meter.Int64Counter("courier.expired",
		metric.WithDescription("Number of expired subscriptions swept out"),
	)
	if err != nil {
		return nil, err
	}

	liveSubs, err := meter.Int64UpDownCounter("courier.subscriptions.live",
		metric.WithDescription("Number of live subscriptions"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		publishes:      publishes,
		deliveries:     deliveries,
		publishLatency: publishLatency,
		faults:         faults,
		expired:        expired,
		liveSubs:       liveSubs,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPublish records one Publish call.
func (m *otelMetrics) RecordPublish(ctx context.Context, messageType string, delivered int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("message_type", messageType),
	}

	m.publishes.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.deliveries.Add(ctx, int64(delivered), metric.WithAttributes(attrs...))
	m.publishLatency.Record(ctx, float64(duration.Microseconds())/1000.0, metric.WithAttributes(attrs...))
}

// RecordFault records a recovered subscriber panic.
func (m *otelMetrics) RecordFault(ctx context.Context, messageType, stage string) {
	m.faults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("message_type", messageType),
		attribute.String("stage", stage),
	))
}

// RecordSweep records expired subscriptions removed during a Publish.
func (m *otelMetrics) RecordSweep(ctx context.Context, messageType string, removed int) {
	m.expired.Add(ctx, int64(removed), metric.WithAttributes(
		attribute.String("message_type", messageType),
	))
}

// RecordSubscriptionChange adjusts the live subscription count.
func (m *otelMetrics) RecordSubscriptionChange(messageType string, delta int64) {
	m.liveSubs.Add(context.Background(), delta, metric.WithAttributes(
		attribute.String("message_type", messageType),
	))
}
