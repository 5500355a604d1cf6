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

// MetricsRecorder records event pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPublish records a publish attempt with its latency and outcome.
	RecordPublish(ctx context.Context, eventType string, duration time.Duration, err error)

	// RecordDelivery records one handler invocation for an event.
	RecordDelivery(ctx context.Context, eventType string, err error)

	// RecordStoreAppend records an event store append attempt.
	RecordStoreAppend(ctx context.Context, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	published      metric.Int64Counter
	publishLatency metric.Float64Histogram
	publishErrors  metric.Int64Counter
	delivered      metric.Int64Counter
	handlerErrors  metric.Int64Counter
	storeAppends   metric.Int64Counter
	storeErrors    metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventcore")

	published, err := meter.Int64Counter("eventcore.events.published",
		metric.WithDescription("Number of events published"),
	)
	if err != nil {
		return nil, err
	}

	publishLatency, err := meter.Float64Histogram("eventcore.publish.latency_ms",
		metric.WithDescription("Publish latency in milliseconds, including fan-out"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	publishErrors, err := meter.Int64Counter("eventcore.publish.errors",
		metric.WithDescription("Number of rejected publishes"),
	)
	if err != nil {
		return nil, err
	}

	delivered, err := meter.Int64Counter("eventcore.events.delivered",
		metric.WithDescription("Number of successful handler completions"),
	)
	if err != nil {
		return nil, err
	}

	handlerErrors, err := meter.Int64Counter("eventcore.handler.errors",
		metric.WithDescription("Number of handler errors caught during delivery"),
	)
	if err != nil {
		return nil, err
	}

	storeAppends, err := meter.Int64Counter("eventcore.store.appends",
		metric.WithDescription("Number of event store appends"),
	)
	if err != nil {
		return nil, err
	}

	storeErrors, err := meter.Int64Counter("eventcore.store.errors",
		metric.WithDescription("Number of event store append failures"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		published:      published,
		publishLatency: publishLatency,
		publishErrors:  publishErrors,
		delivered:      delivered,
		handlerErrors:  handlerErrors,
		storeAppends:   storeAppends,
		storeErrors:    storeErrors,
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

// RecordPublish records a publish attempt.
func (m *otelMetrics) RecordPublish(ctx context.Context, eventType string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
	}

	if err != nil {
		m.publishErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}

	m.published.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.publishLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordDelivery records one handler invocation.
func (m *otelMetrics) RecordDelivery(ctx context.Context, eventType string, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
	}

	if err != nil {
		m.handlerErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}
	m.delivered.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStoreAppend records an event store append attempt.
func (m *otelMetrics) RecordStoreAppend(ctx context.Context, err error) {
	m.storeAppends.Add(ctx, 1)
	if err != nil {
		m.storeErrors.Add(ctx, 1)
	}
}
