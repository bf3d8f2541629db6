package liquidity

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/sportsboard/pkg/board"
)

// Level is open liquidity aggregated at one price.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Qty      int64           `json:"qty"`
	OrderCnt int             `json:"order_count"`
}

// Ladder groups the open orders of an outcome by price, best (highest)
// price first. Orders with no quantity still count toward OrderCnt.
func Ladder(o board.Outcome) []Level {
	levels := make([]Level, 0)

	for _, ord := range o.Orders {
		if ord.Status != board.OrderOpen {
			continue
		}
		price := decimal.NewFromFloat(ord.Price)

		idx := -1
		for i := range levels {
			if levels[i].Price.Equal(price) {
				idx = i
				break
			}
		}
		if idx < 0 {
			levels = append(levels, Level{Price: price})
			idx = len(levels) - 1
		}
		levels[idx].Qty += ord.Quantity()
		levels[idx].OrderCnt++
	}

	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Price.GreaterThan(levels[j].Price)
	})
	return levels
}

// Depth returns the total quantity on a ladder.
func Depth(levels []Level) int64 {
	var total int64
	for _, l := range levels {
		total += l.Qty
	}
	return total
}

// VolumeWeightedPrice returns the quantity-weighted average price of a ladder.
// The second result is false when the ladder holds no quantity.
func VolumeWeightedPrice(levels []Level) (decimal.Decimal, bool) {
	depth := Depth(levels)
	if depth == 0 {
		return decimal.Zero, false
	}

	cost := decimal.Zero
	for _, l := range levels {
		cost = cost.Add(l.Price.Mul(decimal.NewFromInt(l.Qty)))
	}
	return cost.Div(decimal.NewFromInt(depth)), true
}
