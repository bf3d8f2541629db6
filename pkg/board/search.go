package board

import (
	"strings"
)

// Search returns the events whose description, league or any market
// description contains query, case-insensitively. An empty query matches
// everything. Input order is preserved.
func Search(events []Event, query string) []Event {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return events
	}

	var out []Event
	for _, e := range events {
		if matchesQuery(&e, q) {
			out = append(out, e)
		}
	}
	return out
}

func matchesQuery(e *Event, q string) bool {
	if strings.Contains(strings.ToLower(e.Description), q) {
		return true
	}
	if strings.ToLower(string(e.League)) == q {
		return true
	}
	for _, m := range e.Markets {
		if strings.Contains(strings.ToLower(m.Description), q) {
			return true
		}
	}
	return false
}
