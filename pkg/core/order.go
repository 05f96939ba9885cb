package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is Buy or Sell
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide converts "Buy" or "Sell" (any case) into a Side
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return Sell, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// Order stores information about an order held by the cache.
// An Order never changes after construction.
type Order struct {
	id         string
	securityID string
	side       Side
	quantity   uint64
	user       string
	company    string
}

// orderJSON is the diagnostic dump format of an order
type orderJSON struct {
	OrderID    string `json:"orderid"`
	SecurityID string `json:"securityid"`
	Side       string `json:"side"`
	Qty        uint64 `json:"qty"`
	User       string `json:"user"`
	Company    string `json:"company"`
}

// NewOrder creates new constant object Order
func NewOrder(orderID, securityID string, side Side, quantity uint64, user, company string) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: empty order id", ErrInvalidArgument)
	}

	if !side.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, int(side))
	}

	return &Order{
		id:         orderID,
		securityID: securityID,
		side:       side,
		quantity:   quantity,
		user:       user,
		company:    company,
	}, nil
}

// MustNewOrder is like NewOrder but panics on invalid input.
// Intended for fixtures and tests.
func MustNewOrder(orderID, securityID string, side Side, quantity uint64, user, company string) *Order {
	o, err := NewOrder(orderID, securityID, side, quantity, user, company)
	if err != nil {
		panic(err)
	}
	return o
}

// ID returns OrderID field copy
func (o *Order) ID() string {
	return o.id
}

// SecurityID returns the security identifier
func (o *Order) SecurityID() string {
	return o.securityID
}

// Side returns side of the Order
func (o *Order) Side() Side {
	return o.side
}

// Quantity returns Quantity field copy
func (o *Order) Quantity() uint64 {
	return o.quantity
}

// User returns the owning user
func (o *Order) User() string {
	return o.user
}

// Company returns the owning user's company
func (o *Order) Company() string {
	return o.company
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		OrderID:    o.id,
		SecurityID: o.securityID,
		Side:       o.side.String(),
		Qty:        o.quantity,
		User:       o.user,
		Company:    o.company,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Order
func (o *Order) UnmarshalJSON(data []byte) error {
	var j orderJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	side, err := ParseSide(j.Side)
	if err != nil {
		return err
	}

	parsed, err := NewOrder(j.OrderID, j.SecurityID, side, j.Qty, j.User, j.Company)
	if err != nil {
		return err
	}

	*o = *parsed
	return nil
}

// String implements Stringer interface
func (o *Order) String() string {
	j, _ := o.MarshalJSON()
	return string(j)
}
