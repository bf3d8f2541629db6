// Package odds converts the odds provider's decimal prices into the display
// formats used across the dashboard: American odds, decimal (European) odds,
// percentages, payout splits and dollar amounts.
//
// Prices are probability-like decimals in the open interval (0, 1) where 0.5 is
// even money. The plain conversion functions treat an in-domain price as a
// precondition and never panic; the *Strict variants fail fast with
// ErrPriceOutOfDomain instead.
package odds

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrPriceOutOfDomain is returned when a price is not in (0, 1).
var ErrPriceOutOfDomain = errors.New("price out of domain")

var (
	one     = decimal.NewFromInt(1)
	half    = decimal.NewFromFloat(0.5)
	hundred = decimal.NewFromInt(100)
)

// CheckPrice returns ErrPriceOutOfDomain if price is NaN or not in (0, 1).
// Infinities fall outside the interval.
func CheckPrice(price float64) error {
	if math.IsNaN(price) || price <= 0 || price >= 1 {
		return fmt.Errorf("%w: %v", ErrPriceOutOfDomain, price)
	}
	return nil
}

// PriceToAmerican converts a decimal price to American odds.
//
// Favorites (price >= 0.5) are negative with no sign prefix, e.g. 0.65 → "-186".
// Underdogs carry a leading "+", e.g. 0.40 → "+150". Values are rounded half
// away from zero. Out-of-domain prices yield "".
func PriceToAmerican(price float64) string {
	if CheckPrice(price) != nil {
		return ""
	}

	p := decimal.NewFromFloat(price)
	if p.GreaterThanOrEqual(half) {
		return p.Div(one.Sub(p)).Mul(hundred).Neg().Round(0).String()
	}
	return "+" + one.Sub(p).Div(p).Mul(hundred).Round(0).String()
}

// AmericanStrict is PriceToAmerican with an explicit domain check.
func AmericanStrict(price float64) (string, error) {
	if err := CheckPrice(price); err != nil {
		return "", err
	}
	return PriceToAmerican(price), nil
}

// Payout is the split of an order's dollar amount between the amount risked
// and the amount to win.
type Payout struct {
	Risk  decimal.Decimal `json:"risk"`
	ToWin decimal.Decimal `json:"to_win"`
}

// CalculatePayouts splits qty (cents of total stake+payout) at price.
//
// Risk and ToWin are rounded to the cent independently, so their sum may differ
// from qty/100 by a cent. Existing displays depend on this. A NaN or
// infinite price yields a zero Payout.
func CalculatePayouts(price float64, qtyCents int64) Payout {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return Payout{}
	}
	dollars := decimal.NewFromInt(qtyCents).Div(hundred)
	p := decimal.NewFromFloat(price)

	return Payout{
		Risk:  dollars.Mul(p).Round(2),
		ToWin: dollars.Mul(one.Sub(p)).Round(2),
	}
}
