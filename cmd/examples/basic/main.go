package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/erain9/ordercache/pkg/backend/memory"
	"github.com/erain9/ordercache/pkg/core"
	"github.com/erain9/ordercache/pkg/messaging"
)

func main() {
	// Initialize the cache with an in-memory backend and a recording sender
	sender := messaging.NewMockMessageSender()
	cache := core.NewOrderCache(memory.NewMemoryBackend(), core.WithMessageSender(sender))

	orders := []*core.Order{
		core.MustNewOrder("OrdId1", "SecId1", core.Buy, 1000, "User1", "CompanyA"),
		core.MustNewOrder("OrdId2", "SecId2", core.Sell, 3000, "User2", "CompanyB"),
		core.MustNewOrder("OrdId3", "SecId1", core.Sell, 500, "User3", "CompanyA"),
		core.MustNewOrder("OrdId4", "SecId2", core.Buy, 600, "User4", "CompanyC"),
		core.MustNewOrder("OrdId5", "SecId2", core.Buy, 100, "User5", "CompanyB"),
		core.MustNewOrder("OrdId6", "SecId3", core.Buy, 1000, "User6", "CompanyD"),
		core.MustNewOrder("OrdId7", "SecId2", core.Buy, 2000, "User7", "CompanyE"),
		core.MustNewOrder("OrdId8", "SecId2", core.Sell, 5000, "User8", "CompanyE"),
	}
	for _, o := range orders {
		cache.AddOrder(o)
	}

	fmt.Printf("Cached %d orders\n", cache.Len())
	for _, sec := range cache.GetSecurities() {
		result := cache.MatchForSecurity(sec)
		fmt.Printf("%s: matching size %d in %d fills\n", sec, result.Total, len(result.Fills))
		for _, f := range result.Fills {
			fmt.Printf("  %s <-> %s: %d\n", f.First, f.Second, f.Quantity)
		}
	}

	// Cancel everything User2 owns and drain large orders of SecId2
	cache.CancelOrdersForUser("User2")
	cache.CancelOrdersForSecIdWithMinimumQty("SecId2", 1000)
	fmt.Printf("\nAfter cancels: %d orders, SecId2 matching size %d\n",
		cache.Len(), cache.GetMatchingSizeForSecurity("SecId2"))

	// Dump the remaining orders as JSON
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cache.GetAllOrders()); err != nil {
		panic(err)
	}

	fmt.Printf("\n%d events published\n", len(sender.Events()))
}
