package core

import (
	"time"

	"github.com/erain9/ordercache/pkg/messaging"
)

// newOrderEvent converts an order into the message published for it
func newOrderEvent(typ messaging.EventType, reason messaging.CancelReason, order *Order, at time.Time) *messaging.OrderEvent {
	return &messaging.OrderEvent{
		Type:       typ,
		Reason:     reason,
		OrderID:    order.ID(),
		SecurityID: order.SecurityID(),
		Side:       order.Side().String(),
		Quantity:   order.Quantity(),
		User:       order.User(),
		Company:    order.Company(),
		Time:       at.UTC(),
	}
}
