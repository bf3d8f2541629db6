package service

import (
	"time"

	"github.com/phenomenon0/sportsboard/pkg/board"
	"github.com/phenomenon0/sportsboard/pkg/freshness"
	"github.com/phenomenon0/sportsboard/pkg/reconcile"
)

// Board is an immutable snapshot of everything the API serves.
type Board struct {
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`

	// Records are the fresh cached events in provider order.
	Records []freshness.Record `json:"records"`
	// Reconciled is keyed by event ID.
	Reconciled map[string]reconcile.Result `json:"-"`
	// Liquidity is open CASH liquidity in cents keyed by event ID.
	Liquidity map[string]int64 `json:"-"`

	SecondaryAvailable bool `json:"secondary_available"`
	ScoresAvailable    bool `json:"scores_available"`

	scores *freshness.ScoreIndex
}

// Scores returns the live-score index, which may be empty.
func (b *Board) Scores() freshness.Scores {
	if b == nil || b.scores == nil {
		return freshness.NewScoreIndex()
	}
	return b.scores
}

// Event finds a fresh event by ID.
func (b *Board) Event(id string) (freshness.Record, bool) {
	if b == nil {
		return freshness.Record{}, false
	}
	for _, r := range b.Records {
		if r.Event.ID == id {
			return r, true
		}
	}
	return freshness.Record{}, false
}

// Events returns the events of the fresh records.
func (b *Board) Events() []board.Event {
	if b == nil {
		return nil
	}
	out := make([]board.Event, len(b.Records))
	for i, r := range b.Records {
		out[i] = r.Event
	}
	return out
}

// ScoreStatus returns the live-score status for an event, if known.
func (b *Board) ScoreStatus(e board.Event) *freshness.ScoreStatus {
	if b == nil || b.scores == nil {
		return nil
	}
	if s, ok := b.scores.StatusFor(e); ok {
		return &s
	}
	return nil
}

// Summary is the compact form broadcast to streaming clients.
type Summary struct {
	Version            string    `json:"version"`
	GeneratedAt        time.Time `json:"generated_at"`
	Events             int       `json:"events"`
	Live               int       `json:"live"`
	SecondaryAvailable bool      `json:"secondary_available"`
}

// Summary summarizes the board.
func (b *Board) Summary() Summary {
	s := Summary{
		Version:            b.Version,
		GeneratedAt:        b.GeneratedAt,
		Events:             len(b.Records),
		SecondaryAvailable: b.SecondaryAvailable,
	}
	for _, r := range b.Records {
		if freshness.IsLive(r.Event, b.ScoreStatus(r.Event)) {
			s.Live++
		}
	}
	return s
}
