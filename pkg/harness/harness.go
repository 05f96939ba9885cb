// Package harness runs the order cache self-checks against a fixture and
// reports one OK/FAILED result per check.
package harness

import (
	"fmt"
	"math"

	"github.com/erain9/ordercache/pkg/backend/memory"
	"github.com/erain9/ordercache/pkg/core"
	"github.com/erain9/ordercache/pkg/fixture"
)

// keepAllThreshold is the minimum quantity used to show that a bulk cancel
// below every order's size removes nothing
const keepAllThreshold = 1500

// Result is the outcome of one check
type Result struct {
	Name   string
	OK     bool
	Detail string
}

func (r Result) String() string {
	status := "[OK]"
	if !r.OK {
		status = "[FAILED]"
	}
	if r.Detail == "" {
		return fmt.Sprintf("%s %s", status, r.Name)
	}
	return fmt.Sprintf("%s %s: %s", status, r.Name, r.Detail)
}

// Runner builds a fresh cache for every check
type Runner struct {
	opts []core.Option
}

// NewRunner creates a Runner whose caches are built with opts
func NewRunner(opts ...core.Option) *Runner {
	return &Runner{opts: opts}
}

func (r *Runner) newCache(orders []*core.Order) *core.OrderCache {
	cache := core.NewOrderCache(memory.NewMemoryBackend(), r.opts...)
	for _, o := range orders {
		cache.AddOrder(o)
	}
	return cache
}

// Run executes every check of f in a fixed order: the four book checks
// followed by one matching check per scenario expectation.
func (r *Runner) Run(f *fixture.File) []Result {
	results := make([]Result, 0)

	book, err := f.BookOrders()
	if err != nil {
		return append(results, Result{Name: "fixture", Detail: err.Error()})
	}

	if len(book) > 0 {
		results = append(results,
			r.checkAddOrder(f.Book, book),
			r.checkCancelOrder(book),
			r.checkCancelOrdersForUser(book),
			r.checkCancelOrdersForSecIdWithMinimumQty(book),
		)
	}

	for _, s := range f.Scenarios {
		orders, err := f.ScenarioOrders(s)
		if err != nil {
			results = append(results, Result{Name: s.Name, Detail: err.Error()})
			continue
		}
		for _, e := range s.Expect {
			results = append(results, r.checkMatchingSize(s.Name, orders, e))
		}
	}
	return results
}

// Passed reports whether every result is OK
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}

func (r *Runner) checkAddOrder(specs []fixture.OrderSpec, book []*core.Order) Result {
	res := Result{Name: "addOrder()"}
	cache := r.newCache(book)

	for _, spec := range specs {
		cached := cache.GetOrder(spec.ID)
		if cached == nil {
			res.Detail = fmt.Sprintf("order not found in cache: %s", spec.ID)
			return res
		}
		want, err := spec.Order()
		if err != nil {
			res.Detail = err.Error()
			return res
		}
		if want.String() != cached.String() {
			res.Detail = fmt.Sprintf("orderid under test: %s: got %s, want %s", spec.ID, cached, want)
			return res
		}
	}
	res.OK = true
	return res
}

func (r *Runner) checkCancelOrder(book []*core.Order) Result {
	res := Result{Name: "cancelOrder()"}
	cache := r.newCache(book)

	for _, o := range book {
		cache.CancelOrder(o.ID())
		if cache.GetOrder(o.ID()) != nil {
			res.Detail = fmt.Sprintf("order cancelling didn't take place: %s", o.ID())
			return res
		}
	}
	res.OK = true
	return res
}

func (r *Runner) checkCancelOrdersForUser(book []*core.Order) Result {
	res := Result{Name: "cancelOrderForUser()"}
	cache := r.newCache(book)

	user := book[0].User()
	owned := cache.GetUserOrders(user)
	cache.CancelOrdersForUser(user)

	for _, id := range owned {
		if cache.GetOrder(id) != nil {
			res.Detail = fmt.Sprintf("order cancelling didn't take place: %s", id)
			return res
		}
	}
	if remaining := cache.GetUserOrders(user); len(remaining) != 0 {
		res.Detail = fmt.Sprintf("user %s still owns %v", user, remaining)
		return res
	}
	res.OK = true
	return res
}

func (r *Runner) checkCancelOrdersForSecIdWithMinimumQty(book []*core.Order) Result {
	res := Result{Name: "cancelOrderForSecIdWithMinimumQty()"}
	cache := r.newCache(book)

	threshold := uint64(keepAllThreshold)
	for _, o := range book {
		threshold = max(threshold, o.Quantity())
	}
	if threshold < math.MaxUint64 {
		threshold++
	}

	securities := cache.GetSecurities()
	for _, sec := range securities {
		cache.CancelOrdersForSecIdWithMinimumQty(sec, threshold)
	}
	// Only an order of math.MaxUint64 can reach the saturated threshold
	for _, o := range book {
		cached := cache.GetOrder(o.ID()) != nil
		if o.Quantity() < threshold && !cached {
			res.Detail = fmt.Sprintf("orderid not found: %s", o.ID())
			return res
		}
		if o.Quantity() >= threshold && cached {
			res.Detail = fmt.Sprintf("orderid found: %s", o.ID())
			return res
		}
	}

	for _, sec := range securities {
		cache.CancelOrdersForSecIdWithMinimumQty(sec, 0)
	}
	for _, o := range book {
		if cache.GetOrder(o.ID()) != nil {
			res.Detail = fmt.Sprintf("orderid found: %s", o.ID())
			return res
		}
	}
	res.OK = true
	return res
}

func (r *Runner) checkMatchingSize(scenario string, orders []*core.Order, e fixture.Expectation) Result {
	res := Result{Name: fmt.Sprintf("getMatchingSizeForSecurity(%s, %d)", e.Security, e.Size)}
	cache := r.newCache(orders)

	got := cache.GetMatchingSizeForSecurity(e.Security)
	if got != e.Size {
		res.Detail = fmt.Sprintf("%s: bad matched qty: %d", scenario, got)
		return res
	}
	res.OK = true
	return res
}
