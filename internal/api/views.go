package api

import (
	"time"

	"github.com/phenomenon0/sportsboard/pkg/board"
	"github.com/phenomenon0/sportsboard/pkg/freshness"
	"github.com/phenomenon0/sportsboard/pkg/liquidity"
	"github.com/phenomenon0/sportsboard/pkg/odds"
	"github.com/phenomenon0/sportsboard/pkg/reconcile"
)

// EventView is an event as rendered for the board.
type EventView struct {
	ID             string       `json:"id"`
	Description    string       `json:"description"`
	League         board.League `json:"league"`
	Status         string       `json:"status"`
	ScheduledStart time.Time    `json:"scheduled_start"`
	LastUpdated    time.Time    `json:"last_updated"`

	Phase       freshness.Phase `json:"phase"`
	Live        bool            `json:"live"`
	ScoreStatus string          `json:"score_status,omitempty"`

	LiquidityCents   int64  `json:"liquidity_cents"`
	LiquidityDisplay string `json:"liquidity_display"`

	Markets []MarketView `json:"markets"`
}

// MarketView is a market with its classified kind.
type MarketView struct {
	ID             string           `json:"id"`
	Description    string           `json:"description"`
	Kind           board.MarketKind `json:"kind"`
	LiquidityCents int64            `json:"liquidity_cents"`
	Outcomes       []OutcomeView    `json:"outcomes"`
}

// OutcomeView is an outcome priced in the requested format.
type OutcomeView struct {
	ID               string   `json:"id"`
	Description      string   `json:"description"`
	Price            *float64 `json:"price,omitempty"`
	Odds             string   `json:"odds,omitempty"`
	LiquidityCents   int64    `json:"liquidity_cents"`
	LiquidityDisplay string   `json:"liquidity_display"`

	// Detail only.
	Ladder []LevelView `json:"ladder,omitempty"`
	VWAP   string      `json:"vwap,omitempty"`
}

// LevelView is one price level of an outcome's open book.
type LevelView struct {
	Price      string      `json:"price"`
	Odds       string      `json:"odds"`
	QtyCents   int64       `json:"qty_cents"`
	QtyDisplay string      `json:"qty_display"`
	Orders     int         `json:"orders"`
	Payout     odds.Payout `json:"payout"`
}

// BestOddsView is one reconciled outcome with its best odds rendered.
type BestOddsView struct {
	reconcile.CrossSourceOutcome
	BestOddsDisplay string `json:"best_odds_display,omitempty"`
}

type viewer struct {
	format     odds.Format
	classifier *board.Classifier
	scores     freshness.Scores
}

// event renders r. Liquidity figures count CASH orders only.
func (v viewer) event(r freshness.Record, liquidityCents int64, detail bool) EventView {
	e := r.Event
	cash := liquidity.FilterCurrency(e, board.CurrencyCash)

	var status *freshness.ScoreStatus
	if s, ok := v.scores.StatusFor(e); ok {
		status = &s
	}

	ev := EventView{
		ID:               e.ID,
		Description:      e.Description,
		League:           e.League,
		Status:           string(e.Status),
		ScheduledStart:   e.ScheduledStart,
		LastUpdated:      r.LastUpdated,
		Phase:            freshness.PhaseOf(e, status),
		Live:             freshness.IsLive(e, status),
		LiquidityCents:   liquidityCents,
		LiquidityDisplay: odds.FormatLargeCurrency(liquidityCents),
		Markets:          make([]MarketView, len(cash.Markets)),
	}
	if status != nil {
		ev.ScoreStatus = string(*status)
	}

	for i, m := range cash.Markets {
		mv := MarketView{
			ID:             m.ID,
			Description:    m.Description,
			Kind:           v.classifier.Classify(m.Description),
			LiquidityCents: liquidity.SumMarket(m),
			Outcomes:       make([]OutcomeView, len(m.Outcomes)),
		}
		for j, o := range m.Outcomes {
			mv.Outcomes[j] = v.outcome(o, detail)
		}
		ev.Markets[i] = mv
	}
	return ev
}

func (v viewer) outcome(o board.Outcome, detail bool) OutcomeView {
	sum := liquidity.SumOutcome(o)
	ov := OutcomeView{
		ID:               o.ID,
		Description:      o.Description,
		LiquidityCents:   sum,
		LiquidityDisplay: odds.FormatCurrency(sum),
	}
	if p, ok := o.Price(); ok {
		ov.Price = &p
		ov.Odds = odds.FormatPrice(v.format, p)
	}
	if !detail {
		return ov
	}

	levels := liquidity.Ladder(o)
	ov.Ladder = make([]LevelView, len(levels))
	for i, l := range levels {
		price := l.Price.InexactFloat64()
		ov.Ladder[i] = LevelView{
			Price:      l.Price.StringFixed(2),
			Odds:       odds.FormatPrice(v.format, price),
			QtyCents:   l.Qty,
			QtyDisplay: odds.FormatCurrency(l.Qty),
			Orders:     l.OrderCnt,
			Payout:     odds.CalculatePayouts(price, l.Qty),
		}
	}
	if vwap, ok := liquidity.VolumeWeightedPrice(levels); ok {
		ov.VWAP = vwap.StringFixed(4)
	}
	return ov
}

// bestOdds renders decimal best odds in the viewer's format via their
// implied price.
func (v viewer) bestOdds(o reconcile.CrossSourceOutcome) BestOddsView {
	out := BestOddsView{CrossSourceOutcome: o}
	if o.BestOdds != nil && *o.BestOdds > 0 {
		out.BestOddsDisplay = odds.FormatPrice(v.format, 1 / *o.BestOdds)
	}
	return out
}
