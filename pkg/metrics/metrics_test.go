package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPoll(t *testing.T) {
	bm := NewBoardMetrics()

	bm.RecordPoll("odds", nil, 0.2, 1700000000)
	bm.RecordPoll("odds", errors.New("boom"), 0.1, 1700000030)

	if got := testutil.ToFloat64(bm.PollsTotal.WithLabelValues("odds", "ok")); got != 1 {
		t.Errorf("ok polls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(bm.PollsTotal.WithLabelValues("odds", "error")); got != 1 {
		t.Errorf("error polls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(bm.LastPoll.WithLabelValues("odds")); got != 1700000000 {
		t.Errorf("last poll = %v, failed poll must not advance it", got)
	}
}

func TestSetBoard_Resets(t *testing.T) {
	bm := NewBoardMetrics()

	bm.SetBoard(map[string]map[string]int{"NBA": {"LIVE": 2}}, map[string]float64{"NBA": 1500})
	bm.SetBoard(map[string]map[string]int{"MLB": {"PREGAME": 1}}, map[string]float64{"MLB": 20})

	if n := testutil.CollectAndCount(bm.EventsTracked); n != 1 {
		t.Errorf("EventsTracked series = %d, want 1 after reset", n)
	}
	if got := testutil.ToFloat64(bm.LeagueLiquidity.WithLabelValues("MLB")); got != 20 {
		t.Errorf("MLB liquidity = %v, want 20", got)
	}
}

func TestRecordReconcile(t *testing.T) {
	bm := NewBoardMetrics()
	bm.RecordReconcile(1, []string{"primary", "secondary", "primary"}, 2)

	if got := testutil.ToFloat64(bm.ReconciledOutcomes.WithLabelValues("primary")); got != 2 {
		t.Errorf("primary = %v, want 2", got)
	}
	if got := testutil.ToFloat64(bm.SkippedMarkets.WithLabelValues("price_parse")); got != 2 {
		t.Errorf("skipped = %v, want 2", got)
	}
}

func TestHandler(t *testing.T) {
	bm := NewBoardMetrics()
	bm.RecordHTTP("/api/v1/events", 200, 0.01)
	bm.RecordHTTP("/api/v1/events", 404, 0.01)

	rec := httptest.NewRecorder()
	bm.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `sportsboard_http_requests_total{code="4xx",route="/api/v1/events"} 1`) {
		t.Errorf("metrics output missing 4xx counter:\n%s", body)
	}
}
