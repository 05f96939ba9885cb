package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanMatchingSize = "get_matching_size"
	SpanCancelOrders = "cancel_orders"

	// Attribute keys
	AttributeOrderID      = "order.id"
	AttributeSecurityID   = "order.security_id"
	AttributeUser         = "order.user"
	AttributeMinQuantity  = "order.min_quantity"
	AttributeCancelReason = "cancel.reason"
	AttributeCanceled     = "cancel.count"
	AttributeOrderCount   = "matching.order_count"
	AttributeMatchedQty   = "matching.size"
	AttributePasses       = "matching.passes"
	AttributeEventType    = "event.type"
)

// StartCacheSpan starts a new span on the cache tracer
func StartCacheSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetCacheTracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}
