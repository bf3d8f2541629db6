// Package gamma is a read-only client for the secondary prediction-market
// provider's Gamma API. Game markets are fetched by sport tag and handed to
// the reconciler as question/outcome/price triples.
package gamma

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Market is a single prediction market as returned by /markets.
type Market struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	Slug            string    `json:"slug"`
	GameStartTime   string    `json:"gameStartTime,omitempty"`
	EndDate         time.Time `json:"endDate"`
	Active          bool      `json:"active"`
	Closed          bool      `json:"closed"`
	AcceptingOrders bool      `json:"acceptingOrders"`

	// JSON-encoded string arrays, parallel to each other.
	OutcomesRaw      string `json:"outcomes"`
	OutcomePricesRaw string `json:"outcomePrices"`

	Liquidity  JSONFloat `json:"liquidity"`
	Volume     JSONFloat `json:"volume"`
	Volume24hr JSONFloat `json:"volume24hr"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// MarketsFilter narrows a /markets listing. Nil pointers are left unset.
type MarketsFilter struct {
	Active *bool
	Closed *bool
	TagID  string
	Order  string // field to sort by, e.g. "volume"
	Asc    bool
	Limit  int
	Offset int
}

func (f *MarketsFilter) values() url.Values {
	q := url.Values{}
	if f == nil {
		return q
	}
	if f.Active != nil {
		q.Set("active", strconv.FormatBool(*f.Active))
	}
	if f.Closed != nil {
		q.Set("closed", strconv.FormatBool(*f.Closed))
	}
	if f.TagID != "" {
		q.Set("tag_id", f.TagID)
	}
	if f.Order != "" {
		q.Set("order", f.Order)
		q.Set("ascending", strconv.FormatBool(f.Asc))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

// JSONFloat accepts a number or a numeric string; "" decodes to 0.
type JSONFloat float64

func (j *JSONFloat) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*j = JSONFloat(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*j = 0
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*j = JSONFloat(f)
	return nil
}

func (j JSONFloat) Float64() float64 {
	return float64(j)
}

// Outcomes returns the parsed outcome labels.
func (m *Market) Outcomes() ([]string, error) {
	return decodeStrings(m.OutcomesRaw)
}

// OutcomePrices returns the parsed outcome prices, still as strings.
func (m *Market) OutcomePrices() ([]string, error) {
	return decodeStrings(m.OutcomePricesRaw)
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode %q: %w", raw, err)
	}
	return out, nil
}
