// Package board defines the sportsbook data model shared by every part of the
// dashboard: events, their markets, outcomes and resting orders as reported by
// the primary odds provider.
package board

import (
	"time"
)

// League is the league code reported for an event.
type League string

const (
	LeagueMLB   League = "MLB"
	LeagueNBA   League = "NBA"
	LeagueNFL   League = "NFL"
	LeagueNHL   League = "NHL"
	LeagueMLS   League = "MLS"
	LeagueWNBA  League = "WNBA"
	LeagueNCAAB League = "NCAAB"
	LeagueNCAAF League = "NCAAF"
	LeagueUFC   League = "UFC"
)

// Leagues lists every supported league in display order.
func Leagues() []League {
	return []League{
		LeagueNFL, LeagueNBA, LeagueMLB, LeagueNHL, LeagueMLS,
		LeagueWNBA, LeagueNCAAF, LeagueNCAAB, LeagueUFC,
	}
}

// EventStatus is the betting provider's status for an event.
// Unknown upstream values are kept verbatim.
type EventStatus string

const (
	StatusOpenPregame EventStatus = "OPEN_PREGAME"
	StatusOpenIngame  EventStatus = "OPEN_INGAME"
	StatusSuspended   EventStatus = "SUSPENDED"
	StatusClosed      EventStatus = "CLOSED"
	StatusSettled     EventStatus = "SETTLED"
)

// OrderStatus is the book status of a resting order.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "OPEN"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderFilled    OrderStatus = "FILLED"
)

// Currency is the denomination of an order.
type Currency string

const (
	CurrencyCash Currency = "CASH"
	CurrencyCoin Currency = "COIN"
)

// Event is a single scheduled or in-progress contest.
type Event struct {
	ID             string      `json:"id"`
	Description    string      `json:"description"` // "<Away> @ <Home>"
	League         League      `json:"league"`
	Status         EventStatus `json:"status"`
	ScheduledStart time.Time   `json:"scheduled_start"`
	Markets        []Market    `json:"markets"`
}

// Market is one bettable question within an event.
type Market struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Outcomes    []Outcome `json:"outcomes"` // index 0 = away, 1 = home
}

// Outcome is one selectable result within a market. Prices are decimal
// prices in (0, 1); nil means the provider reported none.
type Outcome struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Last        *float64 `json:"last,omitempty"`
	Available   *float64 `json:"available,omitempty"`
	Orders      []Order  `json:"orders,omitempty"`
}

// Price returns the outcome's display price: available, else last.
func (o *Outcome) Price() (float64, bool) {
	if o.Available != nil {
		return *o.Available, true
	}
	if o.Last != nil {
		return *o.Last, true
	}
	return 0, false
}

// Active returns true if the outcome has any price to display.
func (o *Outcome) Active() bool {
	return o.Available != nil || o.Last != nil
}

// Order is a resting order in the book for an outcome.
type Order struct {
	ID       string      `json:"id"`
	Status   OrderStatus `json:"status"`
	Qty      *int64      `json:"qty,omitempty"` // cents of stake+payout
	Price    float64     `json:"price"`
	Currency Currency    `json:"currency"`
}

// Quantity returns the order quantity, treating a missing value as zero.
func (o *Order) Quantity() int64 {
	if o.Qty == nil {
		return 0
	}
	return *o.Qty
}

// Float returns a pointer to v. Handy for building outcomes in fixtures.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int64) *int64 {
	return &v
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() Event {
	out := *e
	out.Markets = make([]Market, len(e.Markets))
	for i, m := range e.Markets {
		out.Markets[i] = m.clone()
	}
	return out
}

func (m Market) clone() Market {
	out := m
	out.Outcomes = make([]Outcome, len(m.Outcomes))
	for i, o := range m.Outcomes {
		oc := o
		if o.Last != nil {
			oc.Last = Float(*o.Last)
		}
		if o.Available != nil {
			oc.Available = Float(*o.Available)
		}
		oc.Orders = make([]Order, len(o.Orders))
		for j, ord := range o.Orders {
			cp := ord
			if ord.Qty != nil {
				cp.Qty = Int(*ord.Qty)
			}
			oc.Orders[j] = cp
		}
		out.Outcomes[i] = oc
	}
	return out
}
