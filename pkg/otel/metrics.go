package otel

import (
	"context"
	"math"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/erain9/ordercache/pkg/otel"
)

var (
	cacheMetrics     *CacheMetrics
	cacheMetricsOnce sync.Once
)

// CacheMetrics holds the instruments recorded by the order cache.
// A nil *CacheMetrics records nothing.
type CacheMetrics struct {
	// Traffic metrics
	ordersAdded     metric.Int64Counter
	ordersCanceled  metric.Int64Counter
	duplicateOrders metric.Int64Counter

	// Matching metrics
	matchingSize   metric.Int64Histogram
	matchingPasses metric.Int64Histogram

	// Error metrics
	eventsFailed metric.Int64Counter
}

// NewCacheMetrics creates a new CacheMetrics instance
func NewCacheMetrics(meter metric.Meter) (*CacheMetrics, error) {
	ordersAdded, err := meter.Int64Counter(
		"ordercache.orders.added",
		metric.WithDescription("Total number of orders inserted into the cache"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	ordersCanceled, err := meter.Int64Counter(
		"ordercache.orders.canceled",
		metric.WithDescription("Total number of orders removed from the cache"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	duplicateOrders, err := meter.Int64Counter(
		"ordercache.orders.duplicate",
		metric.WithDescription("Insertions ignored because the order id was already cached"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	matchingSize, err := meter.Int64Histogram(
		"ordercache.matching.size",
		metric.WithDescription("Matching size computed for a security"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, err
	}

	matchingPasses, err := meter.Int64Histogram(
		"ordercache.matching.passes",
		metric.WithDescription("Passes over the eligible pair list per matching computation"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, err
	}

	eventsFailed, err := meter.Int64Counter(
		"ordercache.events.failed",
		metric.WithDescription("Order events the message sender failed to publish"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &CacheMetrics{
		ordersAdded:     ordersAdded,
		ordersCanceled:  ordersCanceled,
		duplicateOrders: duplicateOrders,
		matchingSize:    matchingSize,
		matchingPasses:  matchingPasses,
		eventsFailed:    eventsFailed,
	}, nil
}

// GetCacheMetrics returns a singleton CacheMetrics built on the configured meter provider
func GetCacheMetrics() *CacheMetrics {
	cacheMetricsOnce.Do(func() {
		m, err := NewCacheMetrics(GetMeterProvider().Meter(instrumentationName))
		if err == nil {
			cacheMetrics = m
		}
	})
	return cacheMetrics
}

// RecordAdded increments the added orders counter
func (m *CacheMetrics) RecordAdded(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersAdded.Add(ctx, 1)
}

// RecordDuplicate increments the ignored duplicate counter
func (m *CacheMetrics) RecordDuplicate(ctx context.Context) {
	if m == nil {
		return
	}
	m.duplicateOrders.Add(ctx, 1)
}

// RecordCanceled adds count removed orders for the given cancel reason
func (m *CacheMetrics) RecordCanceled(ctx context.Context, reason string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.ordersCanceled.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(AttributeCancelReason, reason),
	))
}

// ClampInt64 converts v for int64 instruments and attributes, saturating at math.MaxInt64
func ClampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// RecordMatching records one matching-size computation
func (m *CacheMetrics) RecordMatching(ctx context.Context, size uint64, passes int) {
	if m == nil {
		return
	}
	m.matchingSize.Record(ctx, ClampInt64(size))
	m.matchingPasses.Record(ctx, int64(passes))
}

// RecordEventFailure increments the failed events counter
func (m *CacheMetrics) RecordEventFailure(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.eventsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttributeEventType, eventType),
	))
}
