// Package liquidity aggregates open order quantity over the
// market → outcome → order tree of an event.
//
// Quantities are integer cents of total stake+payout. Only orders with status
// OPEN contribute; currency filtering belongs to the caller (see FilterCurrency).
package liquidity

import (
	"github.com/phenomenon0/sportsboard/pkg/board"
)

// SumOutcome returns the open liquidity resting on an outcome.
// Orders with a missing quantity count as 0.
func SumOutcome(o board.Outcome) int64 {
	var total int64
	for i := range o.Orders {
		if o.Orders[i].Status == board.OrderOpen {
			total += o.Orders[i].Quantity()
		}
	}
	return total
}

// SumMarket returns the open liquidity across every outcome of a market.
func SumMarket(m board.Market) int64 {
	var total int64
	for i := range m.Outcomes {
		total += SumOutcome(m.Outcomes[i])
	}
	return total
}

// SumEvent returns the open liquidity across every market of an event.
func SumEvent(e board.Event) int64 {
	var total int64
	for i := range e.Markets {
		total += SumMarket(e.Markets[i])
	}
	return total
}

// FilterCurrency returns a copy of e keeping only orders denominated in c.
// The input is not modified.
func FilterCurrency(e board.Event, c board.Currency) board.Event {
	out := e.Clone()
	for mi := range out.Markets {
		outcomes := out.Markets[mi].Outcomes
		for oi := range outcomes {
			kept := outcomes[oi].Orders[:0]
			for _, ord := range outcomes[oi].Orders {
				if ord.Currency == c {
					kept = append(kept, ord)
				}
			}
			outcomes[oi].Orders = kept
		}
	}
	return out
}
