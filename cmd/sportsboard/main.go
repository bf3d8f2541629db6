// sportsboard serves a live sports-betting board: it polls the odds provider,
// the secondary prediction market and the live-score feed, and exposes the
// reconciled board over HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/phenomenon0/sportsboard/internal/api"
	"github.com/phenomenon0/sportsboard/internal/config"
	"github.com/phenomenon0/sportsboard/internal/service"
	"github.com/phenomenon0/sportsboard/pkg/board"
	"github.com/phenomenon0/sportsboard/pkg/cache"
	"github.com/phenomenon0/sportsboard/pkg/metrics"
	"github.com/phenomenon0/sportsboard/pkg/odds"
	"github.com/phenomenon0/sportsboard/pkg/sources/espn"
	"github.com/phenomenon0/sportsboard/pkg/sources/gamma"
	"github.com/phenomenon0/sportsboard/pkg/sources/graphql"
	"github.com/phenomenon0/sportsboard/pkg/streaming"
	"github.com/phenomenon0/sportsboard/pkg/teams"
)

var configPath = flag.String("config", "", "Path to a YAML config file (optional)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("loading config")
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	log := logrus.NewEntry(logger).WithField("component", "main")
	log.Info("starting sportsboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	m := metrics.NewBoardMetrics()

	store, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	hubCfg := streaming.DefaultHubConfig()
	hubCfg.CheckOrigin = originChecker(cfg.CORS.Origins)
	hub := streaming.NewHub(hubCfg, logrus.NewEntry(logger))
	hub.OnClientCount = m.SetStreamingClients
	hub.OnBroadcast = func(t streaming.EventType) { m.RecordBroadcast(string(t)) }
	go hub.Run(ctx)

	pref := odds.NewPreference(cfg.Format.Default)
	pref.Subscribe(func(old, new odds.Format) {
		hub.BroadcastFormat(string(old), string(new))
	})

	opts := []service.Option{
		service.WithPublisher(hub),
		service.WithMetrics(m),
		service.WithLogger(logrus.NewEntry(logger)),
	}
	if cfg.Secondary.Enabled {
		opts = append(opts, service.WithSecondary(gamma.NewClient(gamma.WithBaseURL(cfg.Secondary.BaseURL))))
	}
	if cfg.Scores.Enabled {
		opts = append(opts, service.WithScores(espn.New(cfg.Scores.BaseURL)))
	}

	svc := service.New(service.Config{
		EventsInterval:    cfg.Odds.PollInterval,
		SecondaryInterval: cfg.Secondary.PollInterval,
		ScoresInterval:    cfg.Scores.PollInterval,
		SecondaryTag:      cfg.Secondary.Tag,
		Leagues:           cfg.Scores.Leagues,
		FreshnessWindow:   cfg.Cache.FreshnessWindow,
		CacheTTL:          cfg.Cache.TTL,
	}, graphql.NewClient(cfg.Odds.URL, cfg.Odds.Token), store, opts...)

	svc.OnStageComplete(func(result *service.StageResult) {
		entry := log.WithFields(logrus.Fields{
			"stage":    result.Stage,
			"duration": result.Duration,
		})
		if !result.Success {
			entry.WithField("error", result.Error).Warn("stage failed")
			return
		}
		entry.Debug("stage complete")
	})

	deps := api.Deps{
		Board:           svc,
		Format:          pref,
		Classifier:      board.NewClassifier(cfg.Markets.Keywords),
		Metrics:         m,
		Stream:          hub.ServeWS,
		FreshnessWindow: cfg.Cache.FreshnessWindow,
		CORSOrigins:     cfg.CORS.Origins,
		Log:             logrus.NewEntry(logger),
	}
	if cfg.Teams.BaseURL != "" {
		deps.Teams = teams.NewDirectory(cfg.Teams.BaseURL, teams.WithTTL(cfg.Teams.TTL))
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	if err := svc.Start(ctx); err != nil {
		log.WithError(err).Fatal("starting poller")
	}

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serverErrors:
		log.WithError(err).Error("HTTP server error")
	}

	svc.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown")
	}
	cancel()

	log.Info("goodbye")
}

// openStore connects to Redis when configured and falls back to memory.
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Entry) (cache.Store, func()) {
	if cfg.Cache.RedisURL == "" {
		log.Info("using in-memory snapshot cache")
		return cache.NewMemory(), func() {}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	store, client, err := cache.DialRedis(dialCtx, cfg.Cache.RedisURL)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, using in-memory snapshot cache")
		return cache.NewMemory(), func() {}
	}
	log.Info("using redis snapshot cache")
	return store, func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Warn("closing redis")
		}
	}
}

// originChecker allows WebSocket upgrades from the configured CORS origins.
// An empty list or "*" returns nil, which allows every origin.
func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
