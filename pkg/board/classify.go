package board

import (
	"sort"
	"strings"
)

// MarketKind is the coarse type of a market, derived from its description.
type MarketKind string

const (
	KindMoneyline MarketKind = "moneyline"
	KindSpread    MarketKind = "spread"
	KindTotal     MarketKind = "total"
	KindOther     MarketKind = "other"
)

// DefaultKindKeywords returns the default substring table used to classify
// market descriptions.
func DefaultKindKeywords() map[MarketKind][]string {
	return map[MarketKind][]string{
		KindMoneyline: {"moneyline", "winner"},
		KindSpread:    {"spread"},
		KindTotal:     {"total", "over/under"},
	}
}

// kindOrder fixes the order kinds are tried in, so a description matching
// more than one table entry always classifies the same way.
var kindOrder = []MarketKind{KindMoneyline, KindSpread, KindTotal}

// Classifier classifies market descriptions using a keyword table.
type Classifier struct {
	keywords map[MarketKind][]string
	order    []MarketKind
}

// NewClassifier creates a classifier. A nil table uses DefaultKindKeywords.
// Kinds not in the built-in set are tried after it, in name order.
func NewClassifier(keywords map[MarketKind][]string) *Classifier {
	if keywords == nil {
		keywords = DefaultKindKeywords()
	}

	c := &Classifier{keywords: make(map[MarketKind][]string, len(keywords))}
	for kind, words := range keywords {
		lowered := make([]string, 0, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				lowered = append(lowered, w)
			}
		}
		c.keywords[kind] = lowered
	}

	var extra []MarketKind
	for kind := range c.keywords {
		if !isBuiltinKind(kind) {
			extra = append(extra, kind)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	c.order = append(append(c.order, kindOrder...), extra...)

	return c
}

// Classify returns the kind of a market description.
func (c *Classifier) Classify(description string) MarketKind {
	desc := strings.ToLower(description)

	for _, kind := range c.order {
		for _, word := range c.keywords[kind] {
			if strings.Contains(desc, word) {
				return kind
			}
		}
	}
	return KindOther
}

func isBuiltinKind(kind MarketKind) bool {
	for _, k := range kindOrder {
		if k == kind {
			return true
		}
	}
	return false
}
