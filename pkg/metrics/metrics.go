// Package metrics provides Prometheus metrics for the board service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BoardMetrics collects and exposes board-related Prometheus metrics.
type BoardMetrics struct {
	registry *prometheus.Registry

	// Upstream polling
	PollsTotal   *prometheus.CounterVec
	PollDuration *prometheus.HistogramVec
	LastPoll     *prometheus.GaugeVec

	// Board state
	EventsTracked    *prometheus.GaugeVec
	LeagueLiquidity  *prometheus.GaugeVec
	LiquidityChanges *prometheus.CounterVec

	// Reconciliation
	ReconciledOutcomes *prometheus.CounterVec
	MatchedMarkets     prometheus.Histogram
	SkippedMarkets     *prometheus.CounterVec

	// Cache
	CacheOps *prometheus.CounterVec

	// Serving
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	StreamingClients prometheus.Gauge
	StreamingEvents  *prometheus.CounterVec
}

// NewBoardMetrics creates a new metrics collector on its own registry.
func NewBoardMetrics() *BoardMetrics {
	registry := prometheus.NewRegistry()

	bm := &BoardMetrics{
		registry: registry,

		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsboard_polls_total",
				Help: "Upstream poll cycles by source and outcome",
			},
			[]string{"source", "status"},
		),
		PollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sportsboard_poll_duration_seconds",
				Help:    "Upstream poll latency",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"source"},
		),
		LastPoll: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sportsboard_last_successful_poll_timestamp_seconds",
				Help: "Unix time of the last successful poll per source",
			},
			[]string{"source"},
		),

		EventsTracked: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sportsboard_events",
				Help: "Events on the current board",
			},
			[]string{"league", "phase"},
		),
		LeagueLiquidity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sportsboard_open_liquidity_usd",
				Help: "Open CASH liquidity per league in USD",
			},
			[]string{"league"},
		),
		LiquidityChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsboard_liquidity_changes_total",
				Help: "Per-event liquidity changes between polls",
			},
			[]string{"direction"},
		),

		ReconciledOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsboard_reconciled_outcomes_total",
				Help: "Reconciled outcomes by winning source",
			},
			[]string{"best_source"},
		),
		MatchedMarkets: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sportsboard_matched_secondary_markets",
				Help:    "Secondary markets matched per event",
				Buckets: []float64{0, 1, 2, 3, 5, 10},
			},
		),
		SkippedMarkets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsboard_skipped_secondary_markets_total",
				Help: "Secondary markets skipped due to malformed data",
			},
			[]string{"reason"},
		),

		CacheOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsboard_cache_operations_total",
				Help: "Snapshot cache operations",
			},
			[]string{"op", "result"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsboard_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sportsboard_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"route"},
		),
		StreamingClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sportsboard_streaming_clients",
				Help: "Connected websocket clients",
			},
		),
		StreamingEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsboard_streaming_events_total",
				Help: "Events broadcast to websocket clients",
			},
			[]string{"type"},
		),
	}

	bm.registerAll()

	return bm
}

func (bm *BoardMetrics) registerAll() {
	bm.registry.MustRegister(
		bm.PollsTotal,
		bm.PollDuration,
		bm.LastPoll,
		bm.EventsTracked,
		bm.LeagueLiquidity,
		bm.LiquidityChanges,
		bm.ReconciledOutcomes,
		bm.MatchedMarkets,
		bm.SkippedMarkets,
		bm.CacheOps,
		bm.HTTPRequests,
		bm.HTTPDuration,
		bm.StreamingClients,
		bm.StreamingEvents,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (bm *BoardMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(bm.registry, promhttp.HandlerOpts{})
}

// --- Helper methods for recording metrics ---

// RecordPoll records one upstream poll.
func (bm *BoardMetrics) RecordPoll(source string, err error, durationSec float64, unixNow float64) {
	status := "ok"
	if err != nil {
		status = "error"
	} else {
		bm.LastPoll.WithLabelValues(source).Set(unixNow)
	}
	bm.PollsTotal.WithLabelValues(source, status).Inc()
	bm.PollDuration.WithLabelValues(source).Observe(durationSec)
}

// SetBoard replaces the per-league event and liquidity gauges.
// counts is keyed by league then phase; liquidityUSD by league.
func (bm *BoardMetrics) SetBoard(counts map[string]map[string]int, liquidityUSD map[string]float64) {
	bm.EventsTracked.Reset()
	for league, phases := range counts {
		for phase, n := range phases {
			bm.EventsTracked.WithLabelValues(league, phase).Set(float64(n))
		}
	}

	bm.LeagueLiquidity.Reset()
	for league, usd := range liquidityUSD {
		bm.LeagueLiquidity.WithLabelValues(league).Set(usd)
	}
}

// RecordLiquidityChange records a per-event liquidity direction.
func (bm *BoardMetrics) RecordLiquidityChange(direction string) {
	bm.LiquidityChanges.WithLabelValues(direction).Inc()
}

// RecordReconcile records one event's reconciliation.
func (bm *BoardMetrics) RecordReconcile(matchedMarkets int, bestSources []string, skipped int) {
	bm.MatchedMarkets.Observe(float64(matchedMarkets))
	for _, s := range bestSources {
		bm.ReconciledOutcomes.WithLabelValues(s).Inc()
	}
	if skipped > 0 {
		bm.SkippedMarkets.WithLabelValues("price_parse").Add(float64(skipped))
	}
}

// RecordSkipped records secondary markets dropped before reconciliation.
func (bm *BoardMetrics) RecordSkipped(reason string, n int) {
	if n > 0 {
		bm.SkippedMarkets.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordCache records a cache operation.
func (bm *BoardMetrics) RecordCache(op, result string) {
	bm.CacheOps.WithLabelValues(op, result).Inc()
}

// RecordHTTP records a served request.
func (bm *BoardMetrics) RecordHTTP(route string, code int, durationSec float64) {
	bm.HTTPRequests.WithLabelValues(route, statusText(code)).Inc()
	bm.HTTPDuration.WithLabelValues(route).Observe(durationSec)
}

// RecordBroadcast records a streamed event.
func (bm *BoardMetrics) RecordBroadcast(eventType string) {
	bm.StreamingEvents.WithLabelValues(eventType).Inc()
}

// SetStreamingClients sets the connected client count.
func (bm *BoardMetrics) SetStreamingClients(n int) {
	bm.StreamingClients.Set(float64(n))
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
