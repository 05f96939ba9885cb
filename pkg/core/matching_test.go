package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type orderSpec struct {
	id, sec string
	side    Side
	qty     uint64
	user    string
	company string
}

func buildOrders(specs []orderSpec) []*Order {
	orders := make([]*Order, len(specs))
	for i, s := range specs {
		orders[i] = MustNewOrder(s.id, s.sec, s.side, s.qty, s.user, s.company)
	}
	return orders
}

func forSecurity(orders []*Order, sec string) []*Order {
	out := make([]*Order, 0)
	for _, o := range orders {
		if o.SecurityID() == sec {
			out = append(out, o)
		}
	}
	return out
}

var matchTest0 = []orderSpec{
	{"OrdId1", "SecId1", Buy, 1000, "User1", "CompanyA"},
	{"OrdId2", "SecId2", Sell, 3000, "User2", "CompanyB"},
	{"OrdId3", "SecId1", Sell, 500, "User3", "CompanyA"},
	{"OrdId4", "SecId2", Buy, 600, "User4", "CompanyC"},
	{"OrdId5", "SecId2", Buy, 100, "User5", "CompanyB"},
	{"OrdId6", "SecId3", Buy, 1000, "User6", "CompanyD"},
	{"OrdId7", "SecId2", Buy, 2000, "User7", "CompanyE"},
	{"OrdId8", "SecId2", Sell, 5000, "User8", "CompanyE"},
}

var matchTest1 = []orderSpec{
	{"OrdId1", "SecId1", Sell, 100, "User10", "Company2"},
	{"OrdId2", "SecId3", Sell, 200, "User8", "Company2"},
	{"OrdId3", "SecId1", Buy, 300, "User13", "Company2"},
	{"OrdId4", "SecId2", Sell, 400, "User12", "Company2"},
	{"OrdId5", "SecId3", Sell, 500, "User7", "Company2"},
	{"OrdId6", "SecId3", Buy, 600, "User3", "Company1"},
	{"OrdId7", "SecId1", Sell, 700, "User10", "Company2"},
	{"OrdId8", "SecId1", Sell, 800, "User2", "Company1"},
	{"OrdId9", "SecId2", Buy, 900, "User6", "Company2"},
	{"OrdId10", "SecId2", Sell, 1000, "User5", "Company1"},
	{"OrdId11", "SecId1", Sell, 1100, "User13", "Company2"},
	{"OrdId12", "SecId2", Buy, 1200, "User9", "Company2"},
	{"OrdId13", "SecId1", Sell, 1300, "User1", "Company"},
}

var matchTest2 = []orderSpec{
	{"OrdId1", "SecId3", Sell, 100, "User1", "Company1"},
	{"OrdId2", "SecId3", Sell, 200, "User3", "Company2"},
	{"OrdId3", "SecId1", Buy, 300, "User2", "Company1"},
	{"OrdId4", "SecId3", Sell, 400, "User5", "Company2"},
	{"OrdId5", "SecId2", Sell, 500, "User2", "Company1"},
	{"OrdId6", "SecId2", Buy, 600, "User3", "Company2"},
	{"OrdId7", "SecId2", Sell, 700, "User1", "Company1"},
	{"OrdId8", "SecId1", Sell, 800, "User2", "Company1"},
	{"OrdId9", "SecId1", Buy, 900, "User5", "Company2"},
	{"OrdId10", "SecId1", Sell, 1000, "User1", "Company1"},
	{"OrdId11", "SecId2", Sell, 1100, "User6", "Company2"},
}

func TestMatch_CanonicalScenarios(t *testing.T) {
	tests := []struct {
		name   string
		orders []orderSpec
		sec    string
		want   uint64
	}{
		{"matchTest0/SecId2", matchTest0, "SecId2", 2700},
		{"matchTest0/SecId1", matchTest0, "SecId1", 0},
		{"matchTest1/SecId1", matchTest1, "SecId1", 300},
		{"matchTest1/SecId2", matchTest1, "SecId2", 1000},
		{"matchTest1/SecId3", matchTest1, "SecId3", 600},
		{"matchTest2/SecId2", matchTest2, "SecId2", 600},
		{"matchTest2/SecId3", matchTest2, "SecId3", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := forSecurity(buildOrders(tt.orders), tt.sec)
			assert.Equal(t, tt.want, MatchingSize(orders))
		})
	}
}

func TestMatch_Fills(t *testing.T) {
	orders := forSecurity(buildOrders(matchTest0), "SecId2")

	result := Match(orders)

	assert.Equal(t, uint64(2700), result.Total)
	assert.Equal(t, 2, result.Passes)
	assert.Equal(t, []Fill{
		{First: "OrdId2", Second: "OrdId4", Quantity: 600},
		{First: "OrdId2", Second: "OrdId7", Quantity: 2000},
		{First: "OrdId5", Second: "OrdId8", Quantity: 100},
	}, result.Fills)
}

func TestMatch_Empty(t *testing.T) {
	result := Match(nil)
	assert.Equal(t, uint64(0), result.Total)
	assert.Equal(t, 0, result.Passes)
	assert.Empty(t, result.Fills)

	single := buildOrders([]orderSpec{{"a", "S", Buy, 10, "u", "c"}})
	assert.Equal(t, uint64(0), MatchingSize(single))
}

func TestMatch_IneligiblePairs(t *testing.T) {
	tests := []struct {
		name   string
		orders []orderSpec
	}{
		{"same side", []orderSpec{
			{"a", "S", Buy, 10, "u1", "A"},
			{"b", "S", Buy, 10, "u2", "B"},
		}},
		{"same company", []orderSpec{
			{"a", "S", Buy, 10, "u1", "A"},
			{"b", "S", Sell, 10, "u2", "A"},
		}},
		{"zero quantity", []orderSpec{
			{"a", "S", Buy, 0, "u1", "A"},
			{"b", "S", Sell, 10, "u2", "B"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, uint64(0), MatchingSize(buildOrders(tt.orders)))
		})
	}
}

func TestMatch_DrawsDownAcrossCounterparties(t *testing.T) {
	orders := buildOrders([]orderSpec{
		{"big", "S", Sell, 1000, "u1", "A"},
		{"b1", "S", Buy, 300, "u2", "B"},
		{"b2", "S", Buy, 300, "u3", "C"},
		{"b3", "S", Buy, 600, "u4", "D"},
	})

	result := Match(orders)
	assert.Equal(t, uint64(1000), result.Total)
	assert.Equal(t, []Fill{
		{First: "big", Second: "b1", Quantity: 300},
		{First: "big", Second: "b2", Quantity: 300},
		{First: "big", Second: "b3", Quantity: 400},
	}, result.Fills)
}

func TestMatch_Deterministic(t *testing.T) {
	orders := forSecurity(buildOrders(matchTest1), "SecId2")

	first := Match(orders)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Match(orders))
	}
}

// remainingAfter replays fills against the original quantities
func remainingAfter(t *rapid.T, orders []*Order, fills []Fill) map[string]uint64 {
	remaining := make(map[string]uint64, len(orders))
	for _, o := range orders {
		remaining[o.ID()] = o.Quantity()
	}
	for _, f := range fills {
		require.LessOrEqual(t, f.Quantity, remaining[f.First])
		require.LessOrEqual(t, f.Quantity, remaining[f.Second])
		require.Positive(t, f.Quantity)
		remaining[f.First] -= f.Quantity
		remaining[f.Second] -= f.Quantity
	}
	return remaining
}

func TestMatch_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(t, "n")
		companies := []string{"A", "B", "C"}
		orders := make([]*Order, n)
		for i := 0; i < n; i++ {
			orders[i] = MustNewOrder(
				fmt.Sprintf("o%d", i),
				"SEC",
				Side(rapid.IntRange(0, 1).Draw(t, "side")),
				rapid.Uint64Range(0, 1000).Draw(t, "qty"),
				"user",
				rapid.SampledFrom(companies).Draw(t, "company"),
			)
		}
		byID := make(map[string]*Order, n)
		for _, o := range orders {
			byID[o.ID()] = o
		}

		result := Match(orders)

		var sum uint64
		for _, f := range result.Fills {
			a, b := byID[f.First], byID[f.Second]
			require.NotEqual(t, a.Side(), b.Side(), "fill between same side")
			require.NotEqual(t, a.Company(), b.Company(), "fill within a company")
			sum += f.Quantity
		}
		require.Equal(t, sum, result.Total)

		// Each unit matched consumes one unit from each side
		var buys, sells uint64
		for _, o := range orders {
			if o.Side() == Buy {
				buys += o.Quantity()
			} else {
				sells += o.Quantity()
			}
		}
		require.LessOrEqual(t, result.Total, min(buys, sells))

		// Fixpoint: no eligible pair has quantity left on both orders
		remaining := remainingAfter(t, orders, result.Fills)
		for _, p := range eligiblePairs(orders) {
			a, b := orders[p.first].ID(), orders[p.second].ID()
			require.False(t, remaining[a] > 0 && remaining[b] > 0,
				"pair %s/%s still matchable", a, b)
		}

		require.Equal(t, result, Match(orders))
	})
}
