package odds

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format is a user-selectable odds display format.
type Format string

const (
	FormatRaw        Format = "price"
	FormatDecimal    Format = "decimal"
	FormatAmerican   Format = "american"
	FormatPercentage Format = "percentage"
)

// ErrUnknownFormat is returned by ParseFormat for unrecognized names.
var ErrUnknownFormat = errors.New("unknown odds format")

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatRaw, FormatDecimal, FormatAmerican, FormatPercentage}
}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatPrice renders price in format f:
//
//	price      raw price, 2 decimals        0.40 → "0.40"
//	decimal    1/price, 2 decimals          0.40 → "2.50"
//	american   see PriceToAmerican          0.40 → "+150"
//	percentage price*100 rounded, with "%"  0.40 → "40%"
//
// Unknown formats fall back to american. Out-of-domain prices yield "".
func FormatPrice(f Format, price float64) string {
	if CheckPrice(price) != nil {
		return ""
	}
	p := decimal.NewFromFloat(price)

	switch f {
	case FormatRaw:
		return p.StringFixed(2)
	case FormatDecimal:
		return one.Div(p).StringFixed(2)
	case FormatPercentage:
		return p.Mul(hundred).Round(0).String() + "%"
	default:
		return PriceToAmerican(price)
	}
}

// FormatPriceStrict is FormatPrice with an explicit domain check.
func FormatPriceStrict(f Format, price float64) (string, error) {
	if err := CheckPrice(price); err != nil {
		return "", err
	}
	return FormatPrice(f, price), nil
}

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)

	printer = message.NewPrinter(language.English)
)

// FormatCurrency renders an amount in cents as whole dollars with thousands
// separators, e.g. 150000 → "$1,500".
func FormatCurrency(amountCents int64) string {
	dollars := decimal.NewFromInt(amountCents).Div(hundred)
	return formatDollars(dollars)
}

// FormatLargeCurrency renders an amount in cents compactly: "$1.5M" from one
// million dollars up, "$45.0K" from one thousand up, whole dollars below.
func FormatLargeCurrency(amountCents int64) string {
	dollars := decimal.NewFromInt(amountCents).Div(hundred)

	abs := dollars.Abs()
	switch {
	case abs.GreaterThanOrEqual(million):
		return sign(dollars) + "$" + abs.Div(million).StringFixed(1) + "M"
	case abs.GreaterThanOrEqual(thousand):
		return sign(dollars) + "$" + abs.Div(thousand).StringFixed(1) + "K"
	default:
		return formatDollars(dollars)
	}
}

func formatDollars(dollars decimal.Decimal) string {
	whole := dollars.Round(0)
	return sign(whole) + printer.Sprintf("$%d", whole.Abs().IntPart())
}

func sign(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-"
	}
	return ""
}
