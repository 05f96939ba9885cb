package messaging

import (
	"context"
	"time"
)

// EventType tells whether an order entered or left the cache
type EventType string

// Event types
const (
	EventAdded    EventType = "ADDED"
	EventCanceled EventType = "CANCELED"
)

// CancelReason identifies which cancel operation removed an order
type CancelReason string

// Cancel reasons
const (
	ReasonOrder          CancelReason = "order"
	ReasonUser           CancelReason = "user"
	ReasonSecurityMinQty CancelReason = "security_min_qty"
)

// MessageSender defines an interface for publishing cache events.
// It keeps the core package independent of any broker client.
type MessageSender interface {
	SendOrderEvent(ctx context.Context, event *OrderEvent) error
	Close() error
}

// OrderEvent is published whenever an order is added to or removed from the cache
type OrderEvent struct {
	Type       EventType    `json:"type"`
	Reason     CancelReason `json:"reason,omitempty"`
	OrderID    string       `json:"orderId"`
	SecurityID string       `json:"securityId"`
	Side       string       `json:"side"`
	Quantity   uint64       `json:"quantity"`
	User       string       `json:"user"`
	Company    string       `json:"company"`
	Time       time.Time    `json:"time"`
}
