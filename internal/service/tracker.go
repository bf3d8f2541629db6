package service

import (
	"sync"

	"github.com/phenomenon0/sportsboard/pkg/liquidity"
)

// LiquidityChange is a per-event movement in open liquidity between polls.
type LiquidityChange struct {
	EventID   string              `json:"event_id"`
	Previous  int64               `json:"previous"`
	Current   int64               `json:"current"`
	Direction liquidity.Direction `json:"direction"`
}

// Tracker remembers the last observed liquidity total per event.
type Tracker struct {
	mu   sync.Mutex
	last map[string]int64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{last: make(map[string]int64)}
}

// Observe records total for eventID. ok is false on the first observation,
// when there is nothing to compare against.
func (t *Tracker) Observe(eventID string, total int64) (LiquidityChange, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, seen := t.last[eventID]
	t.last[eventID] = total
	if !seen {
		return LiquidityChange{}, false
	}
	return LiquidityChange{
		EventID:   eventID,
		Previous:  prev,
		Current:   total,
		Direction: liquidity.Compare(prev, total),
	}, true
}

// Forget drops events not in keep.
func (t *Tracker) Forget(keep map[string]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.last {
		if !keep[id] {
			delete(t.last, id)
		}
	}
}

// Last returns the last observed total for eventID.
func (t *Tracker) Last(eventID string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.last[eventID]
	return v, ok
}
