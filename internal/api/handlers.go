package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/phenomenon0/sportsboard/internal/service"
	"github.com/phenomenon0/sportsboard/pkg/board"
	"github.com/phenomenon0/sportsboard/pkg/freshness"
	"github.com/phenomenon0/sportsboard/pkg/odds"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type handler struct {
	board      BoardProvider
	teams      TeamLookup
	format     *odds.Preference
	classifier *board.Classifier
	window     time.Duration
	log        *logrus.Entry
	now        func() time.Time
}

func newHandler(d Deps) *handler {
	h := &handler{
		board:      d.Board,
		teams:      d.Teams,
		format:     d.Format,
		classifier: d.Classifier,
		window:     d.FreshnessWindow,
		log:        d.Log,
		now:        d.Now,
	}
	if h.format == nil {
		h.format = odds.NewPreference(odds.FormatAmerican)
	}
	if h.classifier == nil {
		h.classifier = board.NewClassifier(nil)
	}
	if h.window <= 0 {
		h.window = freshness.DefaultWindow
	}
	if h.log == nil {
		h.log = logrus.NewEntry(logrus.New())
	}
	h.log = h.log.WithField("component", "api")
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// HealthCheck reports liveness and whether a board has been built yet.
func (h *handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().UTC(),
		"service":   "sportsboard",
	}
	if b := h.board.Board(); b != nil {
		resp["board_version"] = b.Version
	} else {
		resp["status"] = "starting"
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// GetStatus returns the poller status.
func (h *handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.board.GetStatus())
}

// GetEvents lists fresh events.
// Query params: tab (all|live|pregame), q, format, liquid
func (h *handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	format, ok := h.requestFormat(w, r)
	if !ok {
		return
	}
	tab := freshness.ParseTab(r.URL.Query().Get("tab"))
	query := r.URL.Query().Get("q")
	liquidOnly := parseBoolParam(r, "liquid")

	b := h.board.Board()
	if b == nil {
		h.respondError(w, http.StatusServiceUnavailable, "board not ready", nil)
		return
	}

	records := freshness.Partition(b.Records, tab, h.now(), h.window, b.Scores())
	hasActive := len(freshness.Liquid(records)) > 0
	if liquidOnly {
		records = freshness.Liquid(records)
	}
	if query != "" {
		records = searchRecords(records, query)
	}

	v := viewer{format: format, classifier: h.classifier, scores: b.Scores()}
	events := make([]EventView, len(records))
	for i, rec := range records {
		events[i] = v.event(rec, b.Liquidity[rec.Event.ID], false)
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tab":                 tab,
		"format":              format,
		"query":               query,
		"count":               len(events),
		"events":              events,
		"has_active_markets":  hasActive,
		"board_version":       b.Version,
		"generated_at":        b.GeneratedAt,
		"secondary_available": b.SecondaryAvailable,
		"scores_available":    b.ScoresAvailable,
	})
}

// GetEvent returns one event with per-outcome ladders and payouts.
func (h *handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	format, ok := h.requestFormat(w, r)
	if !ok {
		return
	}
	b, rec, ok := h.lookupEvent(w, r)
	if !ok {
		return
	}

	v := viewer{format: format, classifier: h.classifier, scores: b.Scores()}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"format":        format,
		"event":         v.event(rec, b.Liquidity[rec.Event.ID], true),
		"board_version": b.Version,
	})
}

// GetBestOdds returns the cross-source reconciliation for one event.
func (h *handler) GetBestOdds(w http.ResponseWriter, r *http.Request) {
	format, ok := h.requestFormat(w, r)
	if !ok {
		return
	}
	b, rec, ok := h.lookupEvent(w, r)
	if !ok {
		return
	}

	res := b.Reconciled[rec.Event.ID]
	v := viewer{format: format}
	outcomes := make([]BestOddsView, len(res.Outcomes))
	for i, o := range res.Outcomes {
		outcomes[i] = v.bestOdds(o)
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":            rec.Event.ID,
		"format":              format,
		"matched_markets":     res.MatchedMarkets,
		"skipped_markets":     len(res.Skipped),
		"secondary_available": b.SecondaryAvailable,
		"outcomes":            outcomes,
	})
}

// GetPayout splits a quantity at a price.
// Query params: price (0-1, exclusive), qty (cents)
func (h *handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	price, err := strconv.ParseFloat(r.URL.Query().Get("price"), 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "price must be a number", err)
		return
	}
	if err := odds.CheckPrice(price); err != nil {
		h.respondError(w, http.StatusBadRequest, "price must be between 0 and 1", err)
		return
	}
	qty, err := strconv.ParseInt(r.URL.Query().Get("qty"), 10, 64)
	if err != nil || qty < 0 {
		h.respondError(w, http.StatusBadRequest, "qty must be a non-negative integer", err)
		return
	}

	payout := odds.CalculatePayouts(price, qty)
	formatted := make(map[odds.Format]string, len(odds.Formats()))
	for _, f := range odds.Formats() {
		formatted[f] = odds.FormatPrice(f, price)
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"price":       price,
		"qty_cents":   qty,
		"qty_display": odds.FormatCurrency(qty),
		"risk":        payout.Risk,
		"to_win":      payout.ToWin,
		"odds":        formatted,
	})
}

// GetFormat returns the current display format.
func (h *handler) GetFormat(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"format":    h.format.Get(),
		"available": odds.Formats(),
	})
}

type formatRequest struct {
	Format string `json:"format"`
}

// PutFormat changes the display format. Subscribers are notified on change.
func (h *handler) PutFormat(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	f, err := odds.ParseFormat(req.Format)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	previous := h.format.Get()
	h.format.Set(f)
	h.log.WithFields(logrus.Fields{"from": previous, "to": f}).Info("odds format changed")

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"format":   f,
		"previous": previous,
	})
}

// GetTeam resolves a team by name, alias or abbreviation.
func (h *handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	if h.teams == nil {
		h.respondError(w, http.StatusServiceUnavailable, "team directory disabled", nil)
		return
	}
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		h.respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	team, found, err := h.teams.Lookup(r.Context(), name)
	if err != nil {
		h.respondError(w, http.StatusBadGateway, "team directory unavailable", err)
		return
	}
	if !found {
		h.respondError(w, http.StatusNotFound, "team not found", nil)
		return
	}
	h.respondJSON(w, http.StatusOK, team)
}

// Helper functions

func (h *handler) lookupEvent(w http.ResponseWriter, r *http.Request) (*service.Board, freshness.Record, bool) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		h.respondError(w, http.StatusBadRequest, "event_id is required", nil)
		return nil, freshness.Record{}, false
	}

	b := h.board.Board()
	if b == nil {
		h.respondError(w, http.StatusServiceUnavailable, "board not ready", nil)
		return nil, freshness.Record{}, false
	}

	rec, ok := b.Event(eventID)
	if !ok || !freshness.IsFresh(rec.LastUpdated, h.now(), h.window) {
		h.respondError(w, http.StatusNotFound, "event not found", nil)
		return nil, freshness.Record{}, false
	}
	return b, rec, true
}

// requestFormat reads the format query parameter, falling back to the
// current preference.
func (h *handler) requestFormat(w http.ResponseWriter, r *http.Request) (odds.Format, bool) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		return h.format.Get(), true
	}
	f, err := odds.ParseFormat(raw)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), nil)
		return "", false
	}
	return f, true
}

func searchRecords(records []freshness.Record, query string) []freshness.Record {
	events := make([]board.Event, len(records))
	for i, r := range records {
		events[i] = r.Event
	}
	keep := make(map[string]bool)
	for _, e := range board.Search(events, query) {
		keep[e.ID] = true
	}

	out := make([]freshness.Record, 0, len(keep))
	for _, r := range records {
		if keep[r.Event.ID] {
			out = append(out, r)
		}
	}
	return out
}

func parseBoolParam(r *http.Request, param string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(param))
	return err == nil && v
}

func (h *handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Warn("encoding response")
	}
}

func (h *handler) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		entry := h.log.WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			entry.Warn(message)
		} else {
			entry.Debug(message)
		}
	}

	h.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
