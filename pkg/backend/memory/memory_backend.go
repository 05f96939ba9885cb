package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/erain9/ordercache/pkg/core"
)

// entry is a cached order plus its insertion sequence
type entry struct {
	order *core.Order
	seq   uint64
}

// orderIDSet is a set of order ids
type orderIDSet map[string]struct{}

// orderIndex maps a key (user or security) to the ids stored under it
type orderIndex map[string]orderIDSet

func (idx orderIndex) add(key, orderID string) {
	set, ok := idx[key]
	if !ok {
		set = make(orderIDSet)
		idx[key] = set
	}
	set[orderID] = struct{}{}
}

// remove drops orderID from key and deletes the key once it is empty
func (idx orderIndex) remove(key, orderID string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, orderID)
	if len(set) == 0 {
		delete(idx, key)
	}
}

// mutation describes one atomic change to the backend. insert is stored
// first; then every id returned by selectRemoved is unlinked. selectRemoved
// runs with the write lock held, so selection and removal see the same state.
type mutation struct {
	insert        *core.Order
	selectRemoved func() []string
}

// MemoryBackend implements core.CacheBackend with in-memory storage.
//
// orders is the single source of truth; ordersByUser and ordersBySecurity
// hold ids only. All three are written exclusively by apply.
type MemoryBackend struct {
	sync.RWMutex
	orders           map[string]*entry
	ordersByUser     orderIndex
	ordersBySecurity orderIndex
	nextSeq          uint64
}

// NewMemoryBackend creates new instance of MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		orders:           make(map[string]*entry),
		ordersByUser:     make(orderIndex),
		ordersBySecurity: make(orderIndex),
	}
}

// apply executes m against all three maps under one write lock and returns
// the orders it removed in insertion order.
func (b *MemoryBackend) apply(m mutation) ([]*core.Order, error) {
	b.Lock()
	defer b.Unlock()

	if m.insert != nil {
		if _, exists := b.orders[m.insert.ID()]; exists {
			return nil, core.ErrOrderExists
		}
		b.link(m.insert)
	}

	if m.selectRemoved == nil {
		return nil, nil
	}

	ids := b.sortedBySeq(m.selectRemoved())
	removed := make([]*core.Order, 0, len(ids))
	for _, id := range ids {
		if order := b.unlink(id); order != nil {
			removed = append(removed, order)
		}
	}
	return removed, nil
}

// link and unlink are the only writers of the three maps. Callers hold the write lock.
func (b *MemoryBackend) link(order *core.Order) {
	b.nextSeq++
	b.orders[order.ID()] = &entry{order: order, seq: b.nextSeq}
	b.ordersByUser.add(order.User(), order.ID())
	b.ordersBySecurity.add(order.SecurityID(), order.ID())
}

func (b *MemoryBackend) unlink(orderID string) *core.Order {
	e, ok := b.orders[orderID]
	if !ok {
		return nil
	}
	delete(b.orders, orderID)
	b.ordersByUser.remove(e.order.User(), orderID)
	b.ordersBySecurity.remove(e.order.SecurityID(), orderID)
	return e.order
}

// sortedBySeq returns the known ids of ids ordered by insertion sequence.
// Callers hold the lock.
func (b *MemoryBackend) sortedBySeq(ids []string) []string {
	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := b.orders[id]; ok {
			known = append(known, id)
		}
	}
	sort.Slice(known, func(i, j int) bool {
		return b.orders[known[i]].seq < b.orders[known[j]].seq
	})
	return known
}

func (b *MemoryBackend) idsOf(set orderIDSet) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// GetOrder retrieves an order by ID
func (b *MemoryBackend) GetOrder(orderID string) *core.Order {
	b.RLock()
	defer b.RUnlock()

	if e, ok := b.orders[orderID]; ok {
		return e.order
	}
	return nil
}

// StoreOrder stores an order. It returns core.ErrOrderExists when the id is
// already present and leaves the cached order untouched.
func (b *MemoryBackend) StoreOrder(order *core.Order) error {
	if order == nil {
		return core.ErrInvalidArgument
	}
	_, err := b.apply(mutation{insert: order})
	return err
}

// DeleteOrder removes an order and returns it, or nil when absent
func (b *MemoryBackend) DeleteOrder(orderID string) *core.Order {
	removed, _ := b.apply(mutation{selectRemoved: func() []string {
		return []string{orderID}
	}})
	if len(removed) == 0 {
		return nil
	}
	return removed[0]
}

// DeleteOrdersForUser removes all orders owned by user
func (b *MemoryBackend) DeleteOrdersForUser(user string) []*core.Order {
	removed, _ := b.apply(mutation{selectRemoved: func() []string {
		return b.idsOf(b.ordersByUser[user])
	}})
	return removed
}

// DeleteOrdersForSecurity removes the orders of securityID with quantity >= minQty
func (b *MemoryBackend) DeleteOrdersForSecurity(securityID string, minQty uint64) []*core.Order {
	removed, _ := b.apply(mutation{selectRemoved: func() []string {
		set := b.ordersBySecurity[securityID]
		ids := make([]string, 0, len(set))
		for id := range set {
			if b.orders[id].order.Quantity() >= minQty {
				ids = append(ids, id)
			}
		}
		return ids
	}})
	return removed
}

// GetSecurityOrders returns the orders of securityID in insertion order
func (b *MemoryBackend) GetSecurityOrders(securityID string) []*core.Order {
	b.RLock()
	defer b.RUnlock()

	ids := b.sortedBySeq(b.idsOf(b.ordersBySecurity[securityID]))
	orders := make([]*core.Order, 0, len(ids))
	for _, id := range ids {
		orders = append(orders, b.orders[id].order)
	}
	return orders
}

// GetUserOrderIDs returns the ids owned by user in insertion order
func (b *MemoryBackend) GetUserOrderIDs(user string) []string {
	b.RLock()
	defer b.RUnlock()

	return b.sortedBySeq(b.idsOf(b.ordersByUser[user]))
}

// GetSecurities returns all securities with at least one order, sorted
func (b *MemoryBackend) GetSecurities() []string {
	b.RLock()
	defer b.RUnlock()

	securities := make([]string, 0, len(b.ordersBySecurity))
	for sec := range b.ordersBySecurity {
		securities = append(securities, sec)
	}
	sort.Strings(securities)
	return securities
}

// GetOrders returns every cached order
func (b *MemoryBackend) GetOrders() []*core.Order {
	b.RLock()
	defer b.RUnlock()

	orders := make([]*core.Order, 0, len(b.orders))
	for _, e := range b.orders {
		orders = append(orders, e.order)
	}
	return orders
}

// Len returns the number of cached orders
func (b *MemoryBackend) Len() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.orders)
}

// String implements fmt.Stringer interface
func (b *MemoryBackend) String() string {
	securities := b.GetSecurities()

	b.RLock()
	defer b.RUnlock()

	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("orders: %d", len(b.orders)))
	for _, sec := range securities {
		sb.WriteString(fmt.Sprintf("\n%s -> orders: %d", sec, len(b.ordersBySecurity[sec])))
	}
	return sb.String()
}

// Ensure MemoryBackend implements core.CacheBackend
var _ core.CacheBackend = (*MemoryBackend)(nil)
