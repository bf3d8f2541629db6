package odds

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
)

func TestPriceToAmerican(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{0.40, "+150"},
		{0.65, "-186"},
		{0.50, "-100"},
		{0.64, "-178"},
		{0.25, "+300"},
		{0.20, "+400"},
		{0.75, "-300"},
		{0.60, "-150"},
		{0.49, "+104"},
	}

	for _, tt := range tests {
		t.Run(strconv.FormatFloat(tt.price, 'f', -1, 64), func(t *testing.T) {
			if got := PriceToAmerican(tt.price); got != tt.want {
				t.Errorf("PriceToAmerican(%v) = %s, want %s", tt.price, got, tt.want)
			}
		})
	}
}

func TestPriceToAmerican_SignBySide(t *testing.T) {
	for i := 1; i < 100; i++ {
		p := float64(i) / 100
		got := PriceToAmerican(p)

		if p < 0.5 {
			if !strings.HasPrefix(got, "+") {
				t.Errorf("underdog %v = %s, want leading +", p, got)
			}
			continue
		}

		if strings.HasPrefix(got, "+") {
			t.Errorf("favorite %v = %s, want no leading +", p, got)
		}
		n, err := strconv.Atoi(got)
		if err != nil || n >= 0 {
			t.Errorf("favorite %v = %s, want a negative integer", p, got)
		}
	}
}

func TestPriceToAmerican_OutOfDomain(t *testing.T) {
	for _, p := range []float64{0, 1, -0.2, 1.5, math.NaN()} {
		if got := PriceToAmerican(p); got != "" {
			t.Errorf("PriceToAmerican(%v) = %q, want empty", p, got)
		}
		if _, err := AmericanStrict(p); !errors.Is(err, ErrPriceOutOfDomain) {
			t.Errorf("AmericanStrict(%v) error = %v, want ErrPriceOutOfDomain", p, err)
		}
	}
}

func TestCalculatePayouts(t *testing.T) {
	tests := []struct {
		name      string
		price     float64
		qty       int64
		wantRisk  string
		wantToWin string
	}{
		{"even money", 0.5, 10000, "50", "50"},
		{"favorite", 0.65, 10000, "65", "35"},
		{"odd cents", 0.333, 1000, "3.33", "6.67"},
		{"independent rounding", 0.555, 101, "0.56", "0.45"},
		{"zero qty", 0.4, 0, "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePayouts(tt.price, tt.qty)
			if got.Risk.String() != tt.wantRisk {
				t.Errorf("Risk = %s, want %s", got.Risk, tt.wantRisk)
			}
			if got.ToWin.String() != tt.wantToWin {
				t.Errorf("ToWin = %s, want %s", got.ToWin, tt.wantToWin)
			}
		})
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "$0"},
		{4999, "$50"},
		{150000, "$1,500"},
		{123456789, "$1,234,568"},
		{-250000, "-$2,500"},
	}

	for _, tt := range tests {
		if got := FormatCurrency(tt.cents); got != tt.want {
			t.Errorf("FormatCurrency(%d) = %s, want %s", tt.cents, got, tt.want)
		}
	}
}

func TestFormatLargeCurrency(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{150000000, "$1.5M"},
		{4500000, "$45.0K"},
		{100000, "$1.0K"},
		{99999, "$1,000"},
		{50000, "$500"},
		{123456789012, "$1234.6M"},
	}

	for _, tt := range tests {
		if got := FormatLargeCurrency(tt.cents); got != tt.want {
			t.Errorf("FormatLargeCurrency(%d) = %s, want %s", tt.cents, got, tt.want)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		format Format
		price  float64
		want   string
	}{
		{FormatRaw, 0.4, "0.40"},
		{FormatRaw, 0.655, "0.66"},
		{FormatDecimal, 0.4, "2.50"},
		{FormatDecimal, 0.65, "1.54"},
		{FormatAmerican, 0.4, "+150"},
		{FormatAmerican, 0.65, "-186"},
		{FormatPercentage, 0.4, "40%"},
		{FormatPercentage, 0.655, "66%"},
		{"unknown", 0.4, "+150"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := FormatPrice(tt.format, tt.price); got != tt.want {
				t.Errorf("FormatPrice(%s, %v) = %s, want %s", tt.format, tt.price, got, tt.want)
			}
		})
	}
}

func TestFormatPrice_OutOfDomain(t *testing.T) {
	prices := []float64{0, 1, -0.2, 1.5, math.NaN(), math.Inf(1), math.Inf(-1)}
	for _, f := range Formats() {
		for _, p := range prices {
			if got := FormatPrice(f, p); got != "" {
				t.Errorf("FormatPrice(%s, %v) = %q, want empty", f, p, got)
			}
		}
	}
}

func TestCalculatePayouts_NonFinite(t *testing.T) {
	for _, p := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		got := CalculatePayouts(p, 100)
		if !got.Risk.IsZero() || !got.ToWin.IsZero() {
			t.Errorf("CalculatePayouts(%v, 100) = %+v, want zero", p, got)
		}
	}
}

func TestFormatPrice_DecimalRoundTrip(t *testing.T) {
	for i := 1; i < 100; i++ {
		p := float64(i) / 100
		d, err := strconv.ParseFloat(FormatPrice(FormatDecimal, p), 64)
		if err != nil {
			t.Fatalf("decimal format of %v did not parse: %v", p, err)
		}
		if back := 1 / d; math.Abs(back-p) > 0.0051 {
			t.Errorf("1/decimal(%v) = %v, outside rounding tolerance", p, back)
		}
	}
}

func TestFormatPriceStrict(t *testing.T) {
	if _, err := FormatPriceStrict(FormatDecimal, 0); !errors.Is(err, ErrPriceOutOfDomain) {
		t.Errorf("expected ErrPriceOutOfDomain, got %v", err)
	}
	got, err := FormatPriceStrict(FormatDecimal, 0.5)
	if err != nil || got != "2.00" {
		t.Errorf("FormatPriceStrict(decimal, 0.5) = %q, %v", got, err)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" American ")
	if err != nil || f != FormatAmerican {
		t.Errorf("ParseFormat = %q, %v", f, err)
	}
	if _, err := ParseFormat("fractional"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestPreference(t *testing.T) {
	pref := NewPreference("")
	if pref.Get() != FormatAmerican {
		t.Fatalf("default = %s, want american", pref.Get())
	}

	var changes []string
	unsub := pref.Subscribe(func(old, new Format) {
		changes = append(changes, string(old)+"->"+string(new))
	})

	pref.Set(FormatDecimal)
	pref.Set(FormatDecimal) // no-op
	pref.Set(FormatPercentage)

	if len(changes) != 2 {
		t.Fatalf("got %d notifications, want 2: %v", len(changes), changes)
	}
	if changes[0] != "american->decimal" || changes[1] != "decimal->percentage" {
		t.Errorf("unexpected notifications: %v", changes)
	}

	unsub()
	pref.Set(FormatRaw)
	if len(changes) != 2 {
		t.Errorf("notified after unsubscribe: %v", changes)
	}
	if pref.Get() != FormatRaw {
		t.Errorf("Get() = %s, want price", pref.Get())
	}
}
