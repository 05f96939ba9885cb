package otel

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*CacheMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewCacheMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestCacheMetrics_Counters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAdded(ctx)
	m.RecordAdded(ctx)
	m.RecordDuplicate(ctx)
	m.RecordCanceled(ctx, "user", 3)
	m.RecordCanceled(ctx, "order", 1)
	m.RecordCanceled(ctx, "order", 0)
	m.RecordEventFailure(ctx, "ADDED")

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["ordercache.orders.added"]))
	assert.Equal(t, int64(1), sumOf(t, got["ordercache.orders.duplicate"]))
	assert.Equal(t, int64(4), sumOf(t, got["ordercache.orders.canceled"]))
	assert.Equal(t, int64(1), sumOf(t, got["ordercache.events.failed"]))

	canceled := got["ordercache.orders.canceled"].Data.(metricdata.Sum[int64])
	assert.Len(t, canceled.DataPoints, 2, "one data point per cancel reason")
}

func TestCacheMetrics_Matching(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordMatching(context.Background(), 2700, 2)

	got := collect(t, reader)
	hist, ok := got["ordercache.matching.size"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.Equal(t, int64(2700), hist.DataPoints[0].Sum)

	passes, ok := got["ordercache.matching.passes"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), passes.DataPoints[0].Sum)
}

func TestCacheMetrics_MatchingSaturates(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordMatching(context.Background(), math.MaxUint64, 1)

	got := collect(t, reader)
	hist, ok := got["ordercache.matching.size"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, int64(math.MaxInt64), hist.DataPoints[0].Sum)
}

func TestClampInt64(t *testing.T) {
	tests := []struct {
		in   uint64
		want int64
	}{
		{0, 0},
		{2700, 2700},
		{math.MaxInt64, math.MaxInt64},
		{math.MaxInt64 + 1, math.MaxInt64},
		{math.MaxUint64, math.MaxInt64},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampInt64(tt.in), "ClampInt64(%d)", tt.in)
	}
}

func TestCacheMetrics_NilIsNoop(t *testing.T) {
	var m *CacheMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordAdded(ctx)
		m.RecordDuplicate(ctx)
		m.RecordCanceled(ctx, "order", 1)
		m.RecordMatching(ctx, 1, 1)
		m.RecordEventFailure(ctx, "ADDED")
	})
}

func TestInit_CollectorDisabled(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()

	cleanup, err := Init(Config{})
	require.NoError(t, err)
	require.NotNil(t, cleanup)
	cleanup()

	assert.NotNil(t, GetCacheTracer())
	assert.NotNil(t, GetMeterProvider())
	assert.NotNil(t, GetTracerProvider())
}
