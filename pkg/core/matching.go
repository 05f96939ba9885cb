package core

// Fill is the quantity matched between two orders during one step of Match.
// First is always the earlier of the two orders in the input slice.
type Fill struct {
	First    string
	Second   string
	Quantity uint64
}

// MatchResult contains the outcome of a matching-size computation
type MatchResult struct {
	// Total quantity matched across all fills
	Total uint64
	// Passes is the number of scans over the pair list, including the final
	// scan that found nothing left to match
	Passes int
	// Fills in the order they were applied
	Fills []Fill
}

type matchPair struct {
	first, second int
}

// canMatch reports whether two orders may trade with each other:
// opposite sides and different companies.
func canMatch(a, b *Order) bool {
	return a.Side() != b.Side() && a.Company() != b.Company()
}

// eligiblePairs returns every (i, j), i < j, of orders that can match.
// Pairs are ordered by i then j, so the scan order follows the input order.
func eligiblePairs(orders []*Order) []matchPair {
	pairs := make([]matchPair, 0)
	for i := 0; i < len(orders); i++ {
		for j := i + 1; j < len(orders); j++ {
			if canMatch(orders[i], orders[j]) {
				pairs = append(pairs, matchPair{first: i, second: j})
			}
		}
	}
	return pairs
}

// Match computes how much quantity can be matched among orders.
//
// The eligible pair list is fixed from the input. Each pass walks the list and,
// for every pair whose remaining quantities are both positive, consumes
// min(remaining) from both. Passes repeat until one makes no progress. Every
// progressing pass lowers the summed remaining quantity, so the loop ends.
// Orders are expected to share a security and to have unique ids.
func Match(orders []*Order) MatchResult {
	result := MatchResult{Fills: make([]Fill, 0)}

	pairs := eligiblePairs(orders)
	if len(pairs) == 0 {
		return result
	}

	remaining := make([]uint64, len(orders))
	for i, o := range orders {
		remaining[i] = o.Quantity()
	}

	for {
		result.Passes++
		progress := false

		for _, p := range pairs {
			left, right := remaining[p.first], remaining[p.second]
			if left == 0 || right == 0 {
				continue
			}

			qty := min(left, right)
			remaining[p.first] = left - qty
			remaining[p.second] = right - qty
			result.Total += qty
			result.Fills = append(result.Fills, Fill{
				First:    orders[p.first].ID(),
				Second:   orders[p.second].ID(),
				Quantity: qty,
			})
			progress = true
		}

		if !progress {
			return result
		}
	}
}

// MatchingSize returns only the matched total of Match
func MatchingSize(orders []*Order) uint64 {
	return Match(orders).Total
}
