// Package teams parses event descriptions into team pairs and decides whether
// two descriptions from different providers denote the same game.
package teams

import (
	"regexp"
	"strings"
)

// Pair is the (away, home) split of an event description.
type Pair struct {
	Away string `json:"away"`
	Home string `json:"home"`
}

// "vs" or "vs." as a whole word, case-insensitive.
var vsPattern = regexp.MustCompile(`(?i)^(.+?)\s+vs\.?\s+(.+)$`)

// ParseTeamNames splits "<Away> @ <Home>" or "<Away> vs <Home>" (also "vs.").
// The "@" form takes priority. Both names are trimmed and must be non-empty;
// otherwise ok is false.
func ParseTeamNames(description string) (Pair, bool) {
	if away, home, found := strings.Cut(description, "@"); found {
		p := Pair{Away: strings.TrimSpace(away), Home: strings.TrimSpace(home)}
		if p.Away != "" && p.Home != "" {
			return p, true
		}
	}

	m := vsPattern.FindStringSubmatch(strings.TrimSpace(description))
	if m == nil {
		return Pair{}, false
	}
	p := Pair{Away: strings.TrimSpace(m[1]), Home: strings.TrimSpace(m[2])}
	if p.Away == "" || p.Home == "" {
		return Pair{}, false
	}
	return p, true
}
