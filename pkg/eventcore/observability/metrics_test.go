package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest creates a test meter provider and returns a reader to
// collect from, plus a cleanup function.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, func()) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	originalProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	cleanup := func() {
		otel.SetMeterProvider(originalProvider)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	}

	return reader, cleanup
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum data for %s", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
}

func TestRecordPublish(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordPublish(ctx, "order.created", 5*time.Millisecond, nil)
	m.RecordPublish(ctx, "order.created", 3*time.Millisecond, nil)
	m.RecordPublish(ctx, "order.created", 0, errors.New("invalid event"))

	rm := collectMetrics(t, reader)

	published := findMetric(rm, "eventcore.events.published")
	require.NotNil(t, published)
	assert.Equal(t, int64(2), sumValue(t, published))

	publishErrors := findMetric(rm, "eventcore.publish.errors")
	require.NotNil(t, publishErrors)
	assert.Equal(t, int64(1), sumValue(t, publishErrors))

	latency := findMetric(rm, "eventcore.publish.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count, "failed publishes record no latency")
}

func TestRecordDelivery(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordDelivery(ctx, "order.created", nil)
	m.RecordDelivery(ctx, "order.created", errors.New("handler failed"))
	m.RecordDelivery(ctx, "order.updated", nil)

	rm := collectMetrics(t, reader)

	delivered := findMetric(rm, "eventcore.events.delivered")
	require.NotNil(t, delivered)
	assert.Equal(t, int64(2), sumValue(t, delivered))

	handlerErrors := findMetric(rm, "eventcore.handler.errors")
	require.NotNil(t, handlerErrors)
	assert.Equal(t, int64(1), sumValue(t, handlerErrors))
}

func TestRecordStoreAppend(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordStoreAppend(ctx, nil)
	m.RecordStoreAppend(ctx, errors.New("disk full"))

	rm := collectMetrics(t, reader)

	appends := findMetric(rm, "eventcore.store.appends")
	require.NotNil(t, appends)
	assert.Equal(t, int64(2), sumValue(t, appends), "appends count attempts, not successes")

	storeErrors := findMetric(rm, "eventcore.store.errors")
	require.NotNil(t, storeErrors)
	assert.Equal(t, int64(1), sumValue(t, storeErrors))
}
