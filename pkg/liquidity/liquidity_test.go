package liquidity

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/sportsboard/pkg/board"
)

func order(status board.OrderStatus, qty int64, price float64, c board.Currency) board.Order {
	return board.Order{Status: status, Qty: board.Int(qty), Price: price, Currency: c}
}

func TestSumEvent_Properties(t *testing.T) {
	e := board.Event{ID: "evt"}
	if got := SumEvent(e); got != 0 {
		t.Fatalf("empty event = %d, want 0", got)
	}

	e.Markets = []board.Market{{Outcomes: []board.Outcome{{}, {}}}}
	if got := SumEvent(e); got != 0 {
		t.Fatalf("event without orders = %d, want 0", got)
	}

	e.Markets[0].Outcomes[0].Orders = append(e.Markets[0].Outcomes[0].Orders,
		order(board.OrderOpen, 500, 0.4, board.CurrencyCash))
	if got := SumEvent(e); got != 500 {
		t.Fatalf("one open order = %d, want 500", got)
	}

	e.Markets[0].Outcomes[0].Orders = append(e.Markets[0].Outcomes[0].Orders,
		order(board.OrderCancelled, 700, 0.4, board.CurrencyCash))
	if got := SumEvent(e); got != 500 {
		t.Errorf("cancelled order changed sum to %d", got)
	}
}

func TestSumOutcome(t *testing.T) {
	tests := []struct {
		name   string
		orders []board.Order
		want   int64
	}{
		{"no orders", nil, 0},
		{"open only", []board.Order{
			order(board.OrderOpen, 100, 0.5, board.CurrencyCash),
			order(board.OrderOpen, 250, 0.5, board.CurrencyCoin),
		}, 350},
		{"filled and cancelled ignored", []board.Order{
			order(board.OrderFilled, 100, 0.5, board.CurrencyCash),
			order(board.OrderCancelled, 100, 0.5, board.CurrencyCash),
			order(board.OrderOpen, 42, 0.5, board.CurrencyCash),
		}, 42},
		{"missing qty", []board.Order{
			{Status: board.OrderOpen},
			order(board.OrderOpen, 10, 0.5, board.CurrencyCash),
		}, 10},
		{"unknown status", []board.Order{
			order("PENDING", 10, 0.5, board.CurrencyCash),
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SumOutcome(board.Outcome{Orders: tt.orders}); got != tt.want {
				t.Errorf("SumOutcome = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSumEvent_YankeesRedSox(t *testing.T) {
	e := board.Event{
		Description: "Yankees @ Red Sox",
		Status:      board.StatusOpenIngame,
		Markets: []board.Market{{
			Description: "Moneyline",
			Outcomes: []board.Outcome{
				{Description: "Yankees", Available: board.Float(0.40), Orders: []board.Order{
					order(board.OrderOpen, 10000, 0.40, board.CurrencyCash),
				}},
				{Description: "Red Sox", Available: board.Float(0.65)},
			},
		}},
	}

	if got := SumEvent(e); got != 10000 {
		t.Errorf("SumEvent = %d, want 10000", got)
	}
	if got := SumMarket(e.Markets[0]); got != 10000 {
		t.Errorf("SumMarket = %d, want 10000", got)
	}
}

func TestFilterCurrency(t *testing.T) {
	e := board.Event{Markets: []board.Market{{Outcomes: []board.Outcome{{Orders: []board.Order{
		order(board.OrderOpen, 100, 0.5, board.CurrencyCash),
		order(board.OrderOpen, 900, 0.5, board.CurrencyCoin),
		order(board.OrderOpen, 50, 0.5, board.CurrencyCash),
	}}}}}}

	cash := FilterCurrency(e, board.CurrencyCash)
	if got := SumEvent(cash); got != 150 {
		t.Errorf("cash sum = %d, want 150", got)
	}
	if got := SumEvent(e); got != 1050 {
		t.Errorf("input was modified: sum = %d, want 1050", got)
	}
	if n := len(e.Markets[0].Outcomes[0].Orders); n != 3 {
		t.Errorf("input orders = %d, want 3", n)
	}
}

func TestLadder(t *testing.T) {
	o := board.Outcome{Orders: []board.Order{
		order(board.OrderOpen, 100, 0.48, board.CurrencyCash),
		order(board.OrderOpen, 200, 0.50, board.CurrencyCash),
		order(board.OrderOpen, 50, 0.48, board.CurrencyCash),
		order(board.OrderCancelled, 999, 0.55, board.CurrencyCash),
		{Status: board.OrderOpen, Price: 0.49},
	}}

	levels := Ladder(o)
	if len(levels) != 3 {
		t.Fatalf("got %d levels, want 3", len(levels))
	}

	want := []struct {
		price string
		qty   int64
		cnt   int
	}{
		{"0.5", 200, 1},
		{"0.49", 0, 1},
		{"0.48", 150, 2},
	}
	for i, w := range want {
		if levels[i].Price.String() != w.price || levels[i].Qty != w.qty || levels[i].OrderCnt != w.cnt {
			t.Errorf("level %d = %s/%d/%d, want %s/%d/%d",
				i, levels[i].Price, levels[i].Qty, levels[i].OrderCnt, w.price, w.qty, w.cnt)
		}
	}

	if d := Depth(levels); d != 350 {
		t.Errorf("Depth = %d, want 350", d)
	}

	vwap, ok := VolumeWeightedPrice(levels)
	if !ok {
		t.Fatal("VolumeWeightedPrice not ok")
	}
	// (0.5*200 + 0.48*150) / 350
	expected := decimal.RequireFromString("172").Div(decimal.NewFromInt(350))
	if !vwap.Equal(expected) {
		t.Errorf("VWAP = %s, want %s", vwap, expected)
	}
}

func TestLadder_Empty(t *testing.T) {
	levels := Ladder(board.Outcome{})
	if len(levels) != 0 {
		t.Errorf("expected no levels, got %d", len(levels))
	}
	if _, ok := VolumeWeightedPrice(levels); ok {
		t.Error("empty ladder should have no VWAP")
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		prev, curr int64
		want       Direction
	}{
		{100, 200, Increase},
		{200, 100, Decrease},
		{100, 100, Unchanged},
		{0, 0, Unchanged},
	}
	for _, tt := range tests {
		if got := Compare(tt.prev, tt.curr); got != tt.want {
			t.Errorf("Compare(%d, %d) = %s, want %s", tt.prev, tt.curr, got, tt.want)
		}
	}
}
