// Package freshness decides which cached events are still displayable and
// partitions them into the dashboard's All / Live / Pre-Game tabs.
//
// Stale records are excluded from results, never deleted.
package freshness

import (
	"time"

	"github.com/phenomenon0/sportsboard/pkg/board"
	"github.com/phenomenon0/sportsboard/pkg/teams"
)

// DefaultWindow is the freshness window for both the odds and live-score caches.
const DefaultWindow = time.Hour

// IsFresh reports whether a record updated at lastUpdated is still within
// window at now. The boundary is inclusive.
func IsFresh(lastUpdated, now time.Time, window time.Duration) bool {
	return now.Sub(lastUpdated) <= window
}

// HasActiveMarket reports whether any outcome of the event carries a price.
func HasActiveMarket(e board.Event) bool {
	for _, m := range e.Markets {
		for i := range m.Outcomes {
			if m.Outcomes[i].Active() {
				return true
			}
		}
	}
	return false
}

// ScoreStatus is a status reported by the live-score feed.
type ScoreStatus string

const (
	ScoreScheduled  ScoreStatus = "STATUS_SCHEDULED"
	ScoreInProgress ScoreStatus = "STATUS_IN_PROGRESS"
	ScoreHalftime   ScoreStatus = "STATUS_HALFTIME"
	ScoreEndPeriod  ScoreStatus = "STATUS_END_PERIOD"
	ScoreFinal      ScoreStatus = "STATUS_FINAL"
	ScorePostponed  ScoreStatus = "STATUS_POSTPONED"
)

// IsLive reports whether the score feed considers the game underway.
func (s ScoreStatus) IsLive() bool {
	switch s {
	case ScoreInProgress, ScoreHalftime, ScoreEndPeriod:
		return true
	}
	return false
}

// IsLive ORs the betting provider's in-game status with the score feed's
// status. Either signal alone is enough; scoreStatus may be nil.
func IsLive(e board.Event, scoreStatus *ScoreStatus) bool {
	if e.Status == board.StatusOpenIngame {
		return true
	}
	return scoreStatus != nil && scoreStatus.IsLive()
}

// Phase is the displayed lifecycle stage of an event.
type Phase string

const (
	PhasePregame Phase = "PREGAME"
	PhaseLive    Phase = "LIVE"
	PhaseFinal   Phase = "FINAL"
)

// PhaseOf classifies the currently reported statuses. It never infers a
// transition the upstreams have not reported.
func PhaseOf(e board.Event, scoreStatus *ScoreStatus) Phase {
	switch {
	case IsLive(e, scoreStatus):
		return PhaseLive
	case e.Status == board.StatusOpenPregame:
		return PhasePregame
	case scoreStatus != nil && *scoreStatus == ScoreFinal:
		return PhaseFinal
	case e.Status == board.StatusClosed, e.Status == board.StatusSettled:
		return PhaseFinal
	default:
		return PhasePregame
	}
}

// Record is a cached event with the time it was last refreshed.
type Record struct {
	Event       board.Event `json:"event"`
	LastUpdated time.Time   `json:"last_updated"`
}

// Tab selects a dashboard partition.
type Tab string

const (
	TabAll     Tab = "all"
	TabLive    Tab = "live"
	TabPregame Tab = "pregame"
)

// ParseTab maps a query value to a Tab. Unknown values select all.
func ParseTab(s string) Tab {
	switch Tab(s) {
	case TabLive, TabPregame:
		return Tab(s)
	}
	return TabAll
}

// Scores resolves a score-feed status for an event.
type Scores interface {
	StatusFor(e board.Event) (ScoreStatus, bool)
}

// ScoreIndex is a Scores keyed by normalized team pair.
type ScoreIndex struct {
	entries []scoreEntry
}

type scoreEntry struct {
	key    teams.Pair
	status ScoreStatus
}

// NewScoreIndex creates an empty index.
func NewScoreIndex() *ScoreIndex {
	return &ScoreIndex{}
}

// Add records the status of the game described by description. Descriptions
// that do not parse are ignored.
func (x *ScoreIndex) Add(description string, status ScoreStatus) {
	key, ok := teams.Key(description)
	if !ok {
		return
	}
	x.entries = append(x.entries, scoreEntry{key: key, status: status})
}

// Len returns the number of indexed games.
func (x *ScoreIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}

// StatusFor returns the first indexed status whose teams match the event's.
func (x *ScoreIndex) StatusFor(e board.Event) (ScoreStatus, bool) {
	if x == nil {
		return "", false
	}
	key, ok := teams.Key(e.Description)
	if !ok {
		return "", false
	}
	for _, entry := range x.entries {
		if teams.SamePair(key, entry.key) {
			return entry.status, true
		}
	}
	return "", false
}

// Partition returns the fresh records that belong to tab, in input order.
// scores may be nil.
func Partition(records []Record, tab Tab, now time.Time, window time.Duration, scores Scores) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !IsFresh(r.LastUpdated, now, window) {
			continue
		}
		if tab == TabAll {
			out = append(out, r)
			continue
		}

		var status *ScoreStatus
		if scores != nil {
			if s, ok := scores.StatusFor(r.Event); ok {
				status = &s
			}
		}

		live := IsLive(r.Event, status)
		if (tab == TabLive && live) || (tab == TabPregame && !live && PhaseOf(r.Event, status) == PhasePregame) {
			out = append(out, r)
		}
	}
	return out
}

// Liquid keeps only records whose event has at least one priced market.
func Liquid(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if HasActiveMarket(r.Event) {
			out = append(out, r)
		}
	}
	return out
}
