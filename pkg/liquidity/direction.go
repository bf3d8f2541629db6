package liquidity

// Direction classifies how an event's liquidity moved between two polls.
type Direction string

const (
	Increase  Direction = "increase"
	Decrease  Direction = "decrease"
	Unchanged Direction = "unchanged"
)

// Compare classifies the change from prev to curr.
func Compare(prev, curr int64) Direction {
	switch {
	case curr > prev:
		return Increase
	case curr < prev:
		return Decrease
	default:
		return Unchanged
	}
}
