package core

// CacheBackend defines the storage behind an OrderCache. It owns the primary
// order map and the user and security indices; every method applies to all of
// them as a single atomic step.
type CacheBackend interface {
	// Order operations
	GetOrder(orderID string) *Order
	StoreOrder(order *Order) error
	DeleteOrder(orderID string) *Order

	// Bulk removal, returning the removed orders
	DeleteOrdersForUser(user string) []*Order
	DeleteOrdersForSecurity(securityID string, minQty uint64) []*Order

	// Index reads
	GetSecurityOrders(securityID string) []*Order
	GetUserOrderIDs(user string) []string
	GetSecurities() []string
	GetOrders() []*Order
	Len() int
}
