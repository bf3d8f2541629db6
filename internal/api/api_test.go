package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/phenomenon0/sportsboard/internal/service"
	"github.com/phenomenon0/sportsboard/pkg/board"
	"github.com/phenomenon0/sportsboard/pkg/freshness"
	"github.com/phenomenon0/sportsboard/pkg/metrics"
	"github.com/phenomenon0/sportsboard/pkg/odds"
	"github.com/phenomenon0/sportsboard/pkg/reconcile"
	"github.com/phenomenon0/sportsboard/pkg/teams"
)

var testNow = time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

type fakeBoard struct {
	board *service.Board
}

func (f *fakeBoard) Board() *service.Board { return f.board }

func (f *fakeBoard) GetStatus() *service.Status {
	return &service.Status{Running: true, Events: len(f.board.Records)}
}

type fakeTeams struct {
	teams map[string]teams.Team
	err   error
}

func (f *fakeTeams) Lookup(_ context.Context, name string) (teams.Team, bool, error) {
	if f.err != nil {
		return teams.Team{}, false, f.err
	}
	t, ok := f.teams[strings.ToLower(name)]
	return t, ok, nil
}

func cashOrder(qty int64, price float64) board.Order {
	return board.Order{Status: board.OrderOpen, Qty: board.Int(qty), Price: price, Currency: board.CurrencyCash}
}

func testBoard() *service.Board {
	live := board.Event{
		ID:          "evt-live",
		Description: "Lakers @ Celtics",
		League:      board.LeagueNBA,
		Status:      board.StatusOpenIngame,
		Markets: []board.Market{{
			ID:          "mkt-1",
			Description: "Moneyline",
			Outcomes: []board.Outcome{
				{
					ID:          "o-away",
					Description: "Los Angeles Lakers",
					Available:   board.Float(0.40),
					Orders: []board.Order{
						cashOrder(10000, 0.40),
						cashOrder(5000, 0.40),
						cashOrder(2000, 0.38),
						{Status: board.OrderOpen, Qty: board.Int(99999), Price: 0.40, Currency: board.CurrencyCoin},
					},
				},
				{ID: "o-home", Description: "Boston Celtics", Last: board.Float(0.65)},
			},
		}},
	}
	pregame := board.Event{
		ID:          "evt-pre",
		Description: "Yankees @ Red Sox",
		League:      board.LeagueMLB,
		Status:      board.StatusOpenPregame,
		Markets:     []board.Market{{ID: "mkt-2", Description: "Run Line -1.5", Outcomes: []board.Outcome{{ID: "o-1", Description: "Yankees"}}}},
	}
	stale := board.Event{ID: "evt-stale", Description: "Knicks @ Nets", Status: board.StatusOpenPregame}

	secondary := 1 / 0.35
	primary := 1 / 0.40
	return &service.Board{
		Version:     "v-1",
		GeneratedAt: testNow,
		Records: []freshness.Record{
			{Event: live, LastUpdated: testNow.Add(-time.Minute)},
			{Event: pregame, LastUpdated: testNow.Add(-time.Minute)},
			{Event: stale, LastUpdated: testNow.Add(-3 * time.Hour)},
		},
		Reconciled: map[string]reconcile.Result{
			"evt-live": {
				EventID:        "evt-live",
				MatchedMarkets: 1,
				Outcomes: []reconcile.CrossSourceOutcome{{
					MarketID:      "mkt-1",
					OutcomeID:     "o-away",
					PrimaryOdds:   &primary,
					SecondaryOdds: &secondary,
					BestOdds:      &secondary,
					BestSource:    reconcile.SourceSecondary,
				}},
			},
		},
		Liquidity:          map[string]int64{"evt-live": 17000},
		SecondaryAvailable: true,
	}
}

func newTestServer(t *testing.T, d Deps) *httptest.Server {
	t.Helper()
	if d.Board == nil {
		d.Board = &fakeBoard{board: testBoard()}
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	d.Log = logrus.NewEntry(l)
	d.Now = func() time.Time { return testNow }

	srv := httptest.NewServer(NewRouter(d))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

type eventsResponse struct {
	Tab              string      `json:"tab"`
	Format           string      `json:"format"`
	Count            int         `json:"count"`
	Events           []EventView `json:"events"`
	HasActiveMarkets bool        `json:"has_active_markets"`
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, Deps{})

	var body map[string]interface{}
	if code := getJSON(t, srv.URL+"/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "healthy" || body["board_version"] != "v-1" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestHealthCheck_Starting(t *testing.T) {
	srv := newTestServer(t, Deps{Board: &fakeBoard{}})

	var body map[string]interface{}
	getJSON(t, srv.URL+"/health", &body)
	if body["status"] != "starting" {
		t.Errorf("status = %v, want starting", body["status"])
	}

	var errBody ErrorResponse
	if code := getJSON(t, srv.URL+"/api/v1/events", &errBody); code != http.StatusServiceUnavailable {
		t.Errorf("events before first board = %d, want 503", code)
	}
}

func TestGetEvents_Tabs(t *testing.T) {
	srv := newTestServer(t, Deps{})

	tests := []struct {
		query   string
		wantIDs []string
	}{
		{"", []string{"evt-live", "evt-pre"}},
		{"?tab=all", []string{"evt-live", "evt-pre"}},
		{"?tab=live", []string{"evt-live"}},
		{"?tab=pregame", []string{"evt-pre"}},
		{"?tab=bogus", []string{"evt-live", "evt-pre"}},
		{"?liquid=true", []string{"evt-live"}},
		{"?q=yankees", []string{"evt-pre"}},
		{"?q=knicks", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var resp eventsResponse
			if code := getJSON(t, srv.URL+"/api/v1/events"+tt.query, &resp); code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			if resp.Count != len(tt.wantIDs) {
				t.Fatalf("count = %d, want %d (%+v)", resp.Count, len(tt.wantIDs), resp.Events)
			}
			for i, id := range tt.wantIDs {
				if resp.Events[i].ID != id {
					t.Errorf("events[%d] = %s, want %s", i, resp.Events[i].ID, id)
				}
			}
		})
	}
}

func TestGetEvents_Rendering(t *testing.T) {
	srv := newTestServer(t, Deps{})

	var resp eventsResponse
	getJSON(t, srv.URL+"/api/v1/events?tab=live", &resp)
	if resp.Format != string(odds.FormatAmerican) {
		t.Errorf("format = %s, want american", resp.Format)
	}
	if !resp.HasActiveMarkets {
		t.Error("expected has_active_markets")
	}

	e := resp.Events[0]
	if e.Phase != freshness.PhaseLive || !e.Live {
		t.Errorf("phase = %s live = %v", e.Phase, e.Live)
	}
	if e.LiquidityCents != 17000 || e.LiquidityDisplay != "$170" {
		t.Errorf("liquidity = %d %q", e.LiquidityCents, e.LiquidityDisplay)
	}

	m := e.Markets[0]
	if m.Kind != board.KindMoneyline {
		t.Errorf("kind = %s, want moneyline", m.Kind)
	}
	if m.LiquidityCents != 17000 {
		t.Errorf("market liquidity = %d, want CASH-only 17000", m.LiquidityCents)
	}
	if got := m.Outcomes[0].Odds; got != "+150" {
		t.Errorf("away odds = %s, want +150", got)
	}
	if got := m.Outcomes[1].Odds; got != "-186" {
		t.Errorf("home odds (last price) = %s, want -186", got)
	}
	if m.Outcomes[0].Ladder != nil {
		t.Error("list view should not include ladders")
	}
}

func TestGetEvents_FormatOverride(t *testing.T) {
	srv := newTestServer(t, Deps{})

	var resp eventsResponse
	getJSON(t, srv.URL+"/api/v1/events?tab=live&format=decimal", &resp)
	if got := resp.Events[0].Markets[0].Outcomes[0].Odds; got != "2.50" {
		t.Errorf("decimal odds = %s, want 2.50", got)
	}

	var errBody ErrorResponse
	if code := getJSON(t, srv.URL+"/api/v1/events?format=fractional", &errBody); code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d, want 400", code)
	}
}

func TestGetEvent_Detail(t *testing.T) {
	srv := newTestServer(t, Deps{})

	var resp struct {
		Event EventView `json:"event"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/events/evt-live", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}

	ladder := resp.Event.Markets[0].Outcomes[0].Ladder
	if len(ladder) != 2 {
		t.Fatalf("ladder levels = %d, want 2: %+v", len(ladder), ladder)
	}
	top := ladder[0]
	if top.Price != "0.40" || top.QtyCents != 15000 || top.Orders != 2 {
		t.Errorf("top level = %+v", top)
	}
	if top.Payout.Risk.String() != "60" || top.Payout.ToWin.String() != "90" {
		t.Errorf("top payout = %s / %s, want 60 / 90", top.Payout.Risk, top.Payout.ToWin)
	}
	if resp.Event.Markets[0].Outcomes[0].VWAP == "" {
		t.Error("expected a VWAP")
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	srv := newTestServer(t, Deps{})

	for _, id := range []string{"missing", "evt-stale"} {
		var errBody ErrorResponse
		if code := getJSON(t, srv.URL+"/api/v1/events/"+id, &errBody); code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", id, code)
		}
	}
}

func TestGetBestOdds(t *testing.T) {
	srv := newTestServer(t, Deps{})

	var resp struct {
		MatchedMarkets int            `json:"matched_markets"`
		Outcomes       []BestOddsView `json:"outcomes"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/events/evt-live/best-odds", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.MatchedMarkets != 1 || len(resp.Outcomes) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	o := resp.Outcomes[0]
	if o.BestSource != reconcile.SourceSecondary {
		t.Errorf("best source = %s", o.BestSource)
	}
	if o.BestOddsDisplay != "+186" {
		t.Errorf("best odds display = %s, want +186", o.BestOddsDisplay)
	}
}

func TestGetPayout(t *testing.T) {
	srv := newTestServer(t, Deps{})

	var resp struct {
		Risk       string            `json:"risk"`
		ToWin      string            `json:"to_win"`
		QtyDisplay string            `json:"qty_display"`
		Odds       map[string]string `json:"odds"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/payout?price=0.65&qty=10000", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Risk != "65" || resp.ToWin != "35" {
		t.Errorf("payout = %s / %s, want 65 / 35", resp.Risk, resp.ToWin)
	}
	if resp.QtyDisplay != "$100" || resp.Odds["american"] != "-186" || resp.Odds["percentage"] != "65%" {
		t.Errorf("unexpected rendering: %+v", resp)
	}

	for _, q := range []string{"price=1&qty=100", "price=abc&qty=100", "price=0.5&qty=-1", "price=0.5"} {
		var errBody ErrorResponse
		if code := getJSON(t, srv.URL+"/api/v1/payout?"+q, &errBody); code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, code)
		}
	}
}

func TestFormatPreference(t *testing.T) {
	pref := odds.NewPreference(odds.FormatAmerican)
	var notified []odds.Format
	pref.Subscribe(func(_, f odds.Format) { notified = append(notified, f) })

	srv := newTestServer(t, Deps{Format: pref})

	put := func(body string) int {
		req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/format", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := put(`{"format":"percentage"}`); code != http.StatusOK {
		t.Fatalf("PUT status = %d", code)
	}
	if code := put(`{"format":"fractional"}`); code != http.StatusBadRequest {
		t.Errorf("bad format status = %d, want 400", code)
	}
	if code := put(`not json`); code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", code)
	}

	var current struct {
		Format string `json:"format"`
	}
	getJSON(t, srv.URL+"/api/v1/format", &current)
	if current.Format != "percentage" {
		t.Errorf("format = %s, want percentage", current.Format)
	}
	if len(notified) != 1 || notified[0] != odds.FormatPercentage {
		t.Errorf("notifications = %v", notified)
	}

	var resp eventsResponse
	getJSON(t, srv.URL+"/api/v1/events?tab=live", &resp)
	if got := resp.Events[0].Markets[0].Outcomes[0].Odds; got != "40%" {
		t.Errorf("odds under new preference = %s, want 40%%", got)
	}
}

func TestGetTeam(t *testing.T) {
	lookup := &fakeTeams{teams: map[string]teams.Team{
		"lal": {ID: "1", Name: "Los Angeles Lakers", Abbreviation: "LAL", Logo: "https://img/lal.png"},
	}}
	srv := newTestServer(t, Deps{Teams: lookup})

	var team teams.Team
	if code := getJSON(t, srv.URL+"/api/v1/teams/LAL", &team); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if team.Logo != "https://img/lal.png" {
		t.Errorf("unexpected team: %+v", team)
	}

	var errBody ErrorResponse
	if code := getJSON(t, srv.URL+"/api/v1/teams/nobody", &errBody); code != http.StatusNotFound {
		t.Errorf("unknown team status = %d, want 404", code)
	}

	lookup.err = errors.New("upstream down")
	if code := getJSON(t, srv.URL+"/api/v1/teams/LAL", &errBody); code != http.StatusBadGateway {
		t.Errorf("lookup error status = %d, want 502", code)
	}
}

func TestGetTeam_Disabled(t *testing.T) {
	srv := newTestServer(t, Deps{})

	var errBody ErrorResponse
	if code := getJSON(t, srv.URL+"/api/v1/teams/LAL", &errBody); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.NewBoardMetrics()
	srv := newTestServer(t, Deps{Metrics: m})

	getJSON(t, srv.URL+"/health", nil)

	// The request is recorded after the response is flushed.
	want := `sportsboard_http_requests_total{code="2xx",route="/health"}`
	var body []byte
	for i := 0; i < 50; i++ {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics: %v", err)
		}
		body, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
		if strings.Contains(string(body), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("request metric missing from /metrics output:\n%s", body)
}

func TestMetricsEndpoint_UnmatchedRoute(t *testing.T) {
	m := metrics.NewBoardMetrics()
	srv := newTestServer(t, Deps{Metrics: m})

	for _, path := range []string{"/wp-login.php", "/.env"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
	}

	want := `sportsboard_http_requests_total{code="4xx",route="unmatched"} 2`
	var body string
	for i := 0; i < 50; i++ {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics: %v", err)
		}
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		body = string(raw)
		if strings.Contains(body, want) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(body, want) {
		t.Fatalf("unmatched requests not grouped:\n%s", body)
	}
	if strings.Contains(body, "wp-login") {
		t.Error("raw path leaked into route label")
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, Deps{CORSOrigins: []string{"https://board.example"}})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/events", nil)
	req.Header.Set("Origin", "https://board.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://board.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
