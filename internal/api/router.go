// Package api serves the board over HTTP: event lists per tab, event detail
// with liquidity and payouts, cross-source best odds, the odds display format,
// team lookups, metrics and the streaming endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/phenomenon0/sportsboard/internal/service"
	"github.com/phenomenon0/sportsboard/pkg/board"
	"github.com/phenomenon0/sportsboard/pkg/metrics"
	"github.com/phenomenon0/sportsboard/pkg/odds"
	"github.com/phenomenon0/sportsboard/pkg/teams"
)

// BoardProvider exposes the latest board snapshot and poller status.
type BoardProvider interface {
	Board() *service.Board
	GetStatus() *service.Status
}

// TeamLookup resolves a team name for display.
type TeamLookup interface {
	Lookup(ctx context.Context, name string) (teams.Team, bool, error)
}

// Deps holds the router's collaborators. Teams, Metrics and Stream may be nil.
type Deps struct {
	Board      BoardProvider
	Teams      TeamLookup
	Format     *odds.Preference
	Classifier *board.Classifier
	Metrics    *metrics.BoardMetrics
	Stream     http.HandlerFunc

	FreshnessWindow time.Duration
	CORSOrigins     []string

	Log *logrus.Entry
	Now func() time.Time
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	h := newHandler(d)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(h.log, d.Metrics))
	r.Use(chimiddleware.Recoverer)

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(10 * time.Second))

		r.Get("/status", h.GetStatus)

		// Events
		r.Get("/events", h.GetEvents)
		r.Get("/events/{eventID}", h.GetEvent)
		r.Get("/events/{eventID}/best-odds", h.GetBestOdds)

		// Odds tools
		r.Get("/payout", h.GetPayout)
		r.Get("/format", h.GetFormat)
		r.Put("/format", h.PutFormat)

		// Teams
		r.Get("/teams/{name}", h.GetTeam)
	})

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}
	if d.Stream != nil {
		r.Get("/ws", d.Stream)
	}

	return r
}
