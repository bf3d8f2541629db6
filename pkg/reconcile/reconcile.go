// Package reconcile aligns the primary odds provider's events with markets
// from the secondary prediction-market provider and selects the best decimal
// odds per outcome.
//
// Reconciliation never fails as a whole. Events without a matching secondary
// market pass through primary-only, and markets with unparseable prices are
// skipped and reported in Result.Skipped.
package reconcile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/phenomenon0/sportsboard/pkg/board"
	"github.com/phenomenon0/sportsboard/pkg/sources/gamma"
	"github.com/phenomenon0/sportsboard/pkg/teams"
)

// SentinelOdds is returned by ProbabilityToOdds for probabilities outside (0, 1).
const SentinelOdds = 1.01

// Source tags which provider supplied a price.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
)

// SecondaryMarket is one candidate market from the secondary provider.
// Outcomes and OutcomePrices are parallel.
type SecondaryMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Outcomes      []string `json:"outcomes"`
	OutcomePrices []string `json:"outcome_prices"`
	Volume        string   `json:"volume"`
}

// CrossSourceOutcome pairs one primary outcome with its secondary match, if any.
type CrossSourceOutcome struct {
	MarketID       string   `json:"market_id"`
	OutcomeID      string   `json:"outcome_id"`
	Description    string   `json:"description"`
	PrimaryOdds    *float64 `json:"primary_odds"`
	SecondaryOdds  *float64 `json:"secondary_odds"`
	SecondaryLabel string   `json:"secondary_label,omitempty"`
	BestOdds       *float64 `json:"best_odds"`
	BestSource     Source   `json:"best_source"`
}

// Result is the reconciliation of a single event.
type Result struct {
	EventID        string               `json:"event_id"`
	Outcomes       []CrossSourceOutcome `json:"outcomes"`
	MatchedMarkets int                  `json:"matched_markets"`
	Skipped        []error              `json:"-"`
}

// PriceParseError reports a secondary price string that is not a number.
type PriceParseError struct {
	MarketID string
	Index    int
	Value    string
	Err      error
}

func (e *PriceParseError) Error() string {
	return fmt.Sprintf("market %s: outcome price %d %q: %v", e.MarketID, e.Index, e.Value, e.Err)
}

func (e *PriceParseError) Unwrap() error {
	return e.Err
}

// ProbabilityToOdds converts an implied probability to decimal odds (1/p).
// Probabilities at or beyond 0 and 1, and NaN, map to SentinelOdds.
func ProbabilityToOdds(p float64) float64 {
	if math.IsNaN(p) || p <= 0 || p >= 1 {
		return SentinelOdds
	}
	return 1 / p
}

// pricedMarket is a matched candidate with its prices converted to odds.
type pricedMarket struct {
	labels []string // lowercased
	raw    []string
	odds   []float64
}

// Reconcile pairs every outcome of event with the secondary candidates.
// Neither argument is modified.
func Reconcile(event board.Event, candidates []SecondaryMarket) Result {
	res := Result{EventID: event.ID}

	var matched []pricedMarket
	for _, c := range sortCandidates(candidates) {
		if !teams.TeamsMatch(event.Description, c.Question) {
			continue
		}
		pm, err := price(c)
		if err != nil {
			res.Skipped = append(res.Skipped, err)
			continue
		}
		matched = append(matched, pm)
	}
	res.MatchedMarkets = len(matched)

	for _, m := range event.Markets {
		for _, o := range m.Outcomes {
			res.Outcomes = append(res.Outcomes, pair(m, o, matched))
		}
	}
	return res
}

func pair(m board.Market, o board.Outcome, matched []pricedMarket) CrossSourceOutcome {
	out := CrossSourceOutcome{
		MarketID:    m.ID,
		OutcomeID:   o.ID,
		Description: o.Description,
		BestSource:  SourcePrimary,
	}

	if p, ok := o.Price(); ok {
		odds := ProbabilityToOdds(p)
		out.PrimaryOdds = &odds
	}

	label := strings.ToLower(o.Description)
	if label != "" {
	search:
		for _, pm := range matched {
			for i, l := range pm.labels {
				if l == "" {
					continue
				}
				if strings.Contains(label, l) || strings.Contains(l, label) {
					odds := pm.odds[i]
					out.SecondaryOdds = &odds
					out.SecondaryLabel = pm.raw[i]
					break search
				}
			}
		}
	}

	switch {
	case out.PrimaryOdds != nil && out.SecondaryOdds != nil:
		if *out.SecondaryOdds > *out.PrimaryOdds {
			out.BestOdds, out.BestSource = out.SecondaryOdds, SourceSecondary
		} else {
			out.BestOdds = out.PrimaryOdds
		}
	case out.PrimaryOdds != nil:
		out.BestOdds = out.PrimaryOdds
	case out.SecondaryOdds != nil:
		out.BestOdds, out.BestSource = out.SecondaryOdds, SourceSecondary
	}
	return out
}

// price parses a candidate's price strings. Labels without a price are dropped.
func price(c SecondaryMarket) (pricedMarket, error) {
	n := len(c.Outcomes)
	if len(c.OutcomePrices) < n {
		n = len(c.OutcomePrices)
	}

	pm := pricedMarket{
		labels: make([]string, n),
		raw:    make([]string, n),
		odds:   make([]float64, n),
	}
	for i := 0; i < n; i++ {
		p, err := strconv.ParseFloat(strings.TrimSpace(c.OutcomePrices[i]), 64)
		if err != nil {
			return pricedMarket{}, &PriceParseError{MarketID: c.ID, Index: i, Value: c.OutcomePrices[i], Err: err}
		}
		pm.labels[i] = strings.ToLower(strings.TrimSpace(c.Outcomes[i]))
		pm.raw[i] = c.Outcomes[i]
		pm.odds[i] = ProbabilityToOdds(p)
	}
	return pm, nil
}

// sortCandidates returns the candidates ordered by volume descending, then ID,
// then question. Unparseable volume counts as 0.
func sortCandidates(candidates []SecondaryMarket) []SecondaryMarket {
	sorted := make([]SecondaryMarket, len(candidates))
	copy(sorted, candidates)

	volume := func(s string) float64 {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) {
			return 0
		}
		return v
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		vi, vj := volume(sorted[i].Volume), volume(sorted[j].Volume)
		if vi != vj {
			return vi > vj
		}
		if sorted[i].ID != sorted[j].ID {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Question < sorted[j].Question
	})
	return sorted
}

// ReconcileAll reconciles a batch. A non-nil secondaryErr means the secondary
// fetch failed; every event then passes through primary-only.
func ReconcileAll(events []board.Event, secondary []SecondaryMarket, secondaryErr error) []Result {
	if secondaryErr != nil {
		secondary = nil
	}

	results := make([]Result, len(events))
	for i := range events {
		results[i] = Reconcile(events[i], secondary)
	}
	return results
}

// FromGamma adapts a Gamma market. It fails only when the outcome arrays
// themselves are not valid JSON.
func FromGamma(m gamma.Market) (SecondaryMarket, error) {
	outcomes, err := m.Outcomes()
	if err != nil {
		return SecondaryMarket{}, fmt.Errorf("market %s outcomes: %w", m.ID, err)
	}
	prices, err := m.OutcomePrices()
	if err != nil {
		return SecondaryMarket{}, fmt.Errorf("market %s prices: %w", m.ID, err)
	}

	return SecondaryMarket{
		ID:            m.ID,
		Question:      m.Question,
		Outcomes:      outcomes,
		OutcomePrices: prices,
		Volume:        strconv.FormatFloat(m.Volume.Float64(), 'f', -1, 64),
	}, nil
}

// FromGammaAll adapts a batch, returning the markets that converted and the
// errors for those that did not.
func FromGammaAll(markets []gamma.Market) ([]SecondaryMarket, []error) {
	out := make([]SecondaryMarket, 0, len(markets))
	var errs []error
	for _, m := range markets {
		sm, err := FromGamma(m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, sm)
	}
	return out, errs
}
