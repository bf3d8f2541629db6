package teams

// Key returns the normalized pair for a description. ok is false when the
// description does not parse or a name normalizes to nothing.
func Key(description string) (Pair, bool) {
	p, ok := ParseTeamNames(description)
	if !ok {
		return Pair{}, false
	}
	k := Pair{Away: Normalize(p.Away), Home: Normalize(p.Home)}
	if k.Away == "" || k.Home == "" {
		return Pair{}, false
	}
	return k, true
}

// TeamsMatch reports whether two descriptions name the same two teams,
// regardless of which side each provider labels home. Unparseable
// descriptions never match.
func TeamsMatch(a, b string) bool {
	ka, ok := Key(a)
	if !ok {
		return false
	}
	kb, ok := Key(b)
	if !ok {
		return false
	}
	return SamePair(ka, kb)
}

// SamePair compares two normalized pairs in either orientation.
func SamePair(a, b Pair) bool {
	if a.Away == b.Away && a.Home == b.Home {
		return true
	}
	return a.Away == b.Home && a.Home == b.Away
}
