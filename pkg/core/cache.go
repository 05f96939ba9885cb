package core

import (
	"context"
	"errors"
	"time"

	"github.com/erain9/ordercache/pkg/messaging"
	"github.com/erain9/ordercache/pkg/otel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// OrderCache holds active orders and answers matching-size queries.
//
// None of its operations fail: unknown ids, users and securities are no-ops
// or zero results, and a duplicate order id is silently ignored so the first
// insertion wins.
type OrderCache struct {
	backend CacheBackend
	sender  messaging.MessageSender
	metrics *otel.CacheMetrics
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures an OrderCache
type Option func(*OrderCache)

// WithLogger sets the logger used by the cache. The logger is used as given;
// callers tag it with a component themselves.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *OrderCache) {
		c.logger = logger
	}
}

// WithMessageSender publishes an OrderEvent for every order added or removed
func WithMessageSender(sender messaging.MessageSender) Option {
	return func(c *OrderCache) {
		c.sender = sender
	}
}

// WithMetrics replaces the default metric instruments
func WithMetrics(metrics *otel.CacheMetrics) Option {
	return func(c *OrderCache) {
		c.metrics = metrics
	}
}

// WithClock overrides the event timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *OrderCache) {
		c.now = now
	}
}

// NewOrderCache creates an OrderCache on top of backend
func NewOrderCache(backend CacheBackend, opts ...Option) *OrderCache {
	c := &OrderCache{
		backend: backend,
		metrics: otel.GetCacheMetrics(),
		logger:  log.Logger.With().Str("component", "order_cache").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddOrder stores order. An order whose id is already cached is ignored.
func (c *OrderCache) AddOrder(order *Order) {
	if order == nil {
		return
	}
	ctx := context.Background()

	if err := c.backend.StoreOrder(order); err != nil {
		if errors.Is(err, ErrOrderExists) {
			c.logger.Debug().Str("order_id", order.ID()).Msg("Ignoring duplicate order")
			c.metrics.RecordDuplicate(ctx)
			return
		}
		c.logger.Error().Err(err).Str("order_id", order.ID()).Msg("Failed to store order")
		return
	}

	c.metrics.RecordAdded(ctx)
	c.logger.Debug().
		Str("order_id", order.ID()).
		Str("security_id", order.SecurityID()).
		Str("side", order.Side().String()).
		Uint64("qty", order.Quantity()).
		Msg("Order added")

	c.publish(ctx, newOrderEvent(messaging.EventAdded, "", order, c.now()))
}

// CancelOrder removes the order with this id
func (c *OrderCache) CancelOrder(orderID string) {
	ctx, span := otel.StartCacheSpan(context.Background(), otel.SpanCancelOrders,
		attribute.String(otel.AttributeCancelReason, string(messaging.ReasonOrder)),
		attribute.String(otel.AttributeOrderID, orderID),
	)
	defer span.End()

	removed := c.backend.DeleteOrder(orderID)
	if removed == nil {
		otel.AddAttributes(span, attribute.Int(otel.AttributeCanceled, 0))
		return
	}
	otel.AddAttributes(span, attribute.Int(otel.AttributeCanceled, 1))
	c.canceled(ctx, messaging.ReasonOrder, []*Order{removed})
}

// CancelOrdersForUser removes every order owned by user
func (c *OrderCache) CancelOrdersForUser(user string) {
	ctx, span := otel.StartCacheSpan(context.Background(), otel.SpanCancelOrders,
		attribute.String(otel.AttributeCancelReason, string(messaging.ReasonUser)),
		attribute.String(otel.AttributeUser, user),
	)
	defer span.End()

	removed := c.backend.DeleteOrdersForUser(user)
	otel.AddAttributes(span, attribute.Int(otel.AttributeCanceled, len(removed)))
	c.canceled(ctx, messaging.ReasonUser, removed)
}

// CancelOrdersForSecIdWithMinimumQty removes every order for securityID whose
// quantity is at least minQty. Smaller orders stay cached.
func (c *OrderCache) CancelOrdersForSecIdWithMinimumQty(securityID string, minQty uint64) {
	ctx, span := otel.StartCacheSpan(context.Background(), otel.SpanCancelOrders,
		attribute.String(otel.AttributeCancelReason, string(messaging.ReasonSecurityMinQty)),
		attribute.String(otel.AttributeSecurityID, securityID),
		attribute.Int64(otel.AttributeMinQuantity, otel.ClampInt64(minQty)),
	)
	defer span.End()

	removed := c.backend.DeleteOrdersForSecurity(securityID, minQty)
	otel.AddAttributes(span, attribute.Int(otel.AttributeCanceled, len(removed)))
	c.canceled(ctx, messaging.ReasonSecurityMinQty, removed)
}

// GetMatchingSizeForSecurity returns the total quantity that can match among
// the cached orders of securityID. See Match for the algorithm.
func (c *OrderCache) GetMatchingSizeForSecurity(securityID string) uint64 {
	return c.MatchForSecurity(securityID).Total
}

// MatchForSecurity runs Match over a snapshot of the security's orders, taken
// in insertion order, and returns the full result including fills.
func (c *OrderCache) MatchForSecurity(securityID string) MatchResult {
	ctx, span := otel.StartCacheSpan(context.Background(), otel.SpanMatchingSize,
		attribute.String(otel.AttributeSecurityID, securityID),
	)
	defer span.End()

	orders := c.backend.GetSecurityOrders(securityID)
	result := Match(orders)

	c.metrics.RecordMatching(ctx, result.Total, result.Passes)
	otel.AddAttributes(span,
		attribute.Int(otel.AttributeOrderCount, len(orders)),
		attribute.Int64(otel.AttributeMatchedQty, otel.ClampInt64(result.Total)),
		attribute.Int(otel.AttributePasses, result.Passes),
	)
	span.SetStatus(codes.Ok, "")

	c.logger.Debug().
		Str("security_id", securityID).
		Int("orders", len(orders)).
		Int("fills", len(result.Fills)).
		Int("passes", result.Passes).
		Uint64("matching_size", result.Total).
		Msg("Computed matching size")

	return result
}

// GetAllOrders returns every cached order. The order of the slice is unspecified.
func (c *OrderCache) GetAllOrders() []*Order {
	return c.backend.GetOrders()
}

// GetOrder returns Order by id, or nil
func (c *OrderCache) GetOrder(orderID string) *Order {
	return c.backend.GetOrder(orderID)
}

// GetUserOrders returns the ids of the orders owned by user, in insertion order
func (c *OrderCache) GetUserOrders(user string) []string {
	return c.backend.GetUserOrderIDs(user)
}

// GetSecurities returns the securities that currently have orders, sorted
func (c *OrderCache) GetSecurities() []string {
	return c.backend.GetSecurities()
}

// Len returns the number of cached orders
func (c *OrderCache) Len() int {
	return c.backend.Len()
}

// private methods

func (c *OrderCache) canceled(ctx context.Context, reason messaging.CancelReason, removed []*Order) {
	if len(removed) == 0 {
		return
	}

	c.metrics.RecordCanceled(ctx, string(reason), len(removed))
	c.logger.Debug().
		Str("reason", string(reason)).
		Int("count", len(removed)).
		Msg("Orders canceled")

	now := c.now()
	for _, order := range removed {
		c.publish(ctx, newOrderEvent(messaging.EventCanceled, reason, order, now))
	}
}

// publish hands event to the configured sender. Failures are logged and
// counted; they never reach the cache caller.
func (c *OrderCache) publish(ctx context.Context, event *messaging.OrderEvent) {
	if c.sender == nil {
		return
	}

	if err := c.sender.SendOrderEvent(ctx, event); err != nil {
		c.metrics.RecordEventFailure(ctx, string(event.Type))
		c.logger.Warn().Err(err).
			Str("order_id", event.OrderID).
			Str("event", string(event.Type)).
			Msg("Failed to publish order event")
	}
}
