// Package service polls the upstream providers, keeps the cached board
// snapshots current and publishes every rebuilt board to streaming clients.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/phenomenon0/sportsboard/pkg/board"
	"github.com/phenomenon0/sportsboard/pkg/cache"
	"github.com/phenomenon0/sportsboard/pkg/freshness"
	"github.com/phenomenon0/sportsboard/pkg/liquidity"
	"github.com/phenomenon0/sportsboard/pkg/metrics"
	"github.com/phenomenon0/sportsboard/pkg/reconcile"
	"github.com/phenomenon0/sportsboard/pkg/sources/espn"
	"github.com/phenomenon0/sportsboard/pkg/sources/gamma"
)

// Stage is one polling step.
type Stage string

const (
	StageEvents    Stage = "events"
	StageSecondary Stage = "secondary"
	StageScores    Stage = "scores"
)

// StageResult holds the result of a stage execution.
type StageResult struct {
	Stage     Stage         `json:"stage"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Data      interface{}   `json:"data,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

var (
	errSecondaryDisabled = errors.New("secondary source disabled")
	errSecondaryStale    = errors.New("secondary snapshot stale")
)

// EventSource lists open events from the primary odds provider.
type EventSource interface {
	OpenEvents(ctx context.Context) ([]board.Event, error)
}

// SecondarySource lists game markets from the secondary provider.
type SecondarySource interface {
	ListGameMarkets(ctx context.Context, tagID string) ([]gamma.Market, error)
}

// ScoreSource fetches live scoreboards per league.
type ScoreSource interface {
	FetchAll(ctx context.Context, leagues []board.League) ([]espn.Game, map[board.League]error)
}

// Publisher pushes board updates to connected clients.
type Publisher interface {
	BroadcastBoard(board interface{})
	BroadcastLiquidity(change interface{})
	BroadcastStatus(status interface{})
	BroadcastError(err error, source string)
}

// Config configures the poller.
type Config struct {
	EventsInterval    time.Duration
	SecondaryInterval time.Duration
	ScoresInterval    time.Duration

	SecondaryTag string
	Leagues      []board.League

	FreshnessWindow time.Duration
	CacheTTL        time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		EventsInterval:    30 * time.Second,
		SecondaryInterval: time.Minute,
		ScoresInterval:    5 * time.Minute,
		Leagues:           []board.League{board.LeagueNFL, board.LeagueNBA, board.LeagueMLB, board.LeagueNHL},
		FreshnessWindow:   freshness.DefaultWindow,
		CacheTTL:          cache.DefaultTTL,
	}
}

// Option configures a Service.
type Option func(*Service)

// WithSecondary enables cross-source reconciliation against src.
func WithSecondary(src SecondarySource) Option {
	return func(s *Service) { s.secondary = src }
}

// WithScores enables live-score polling from src.
func WithScores(src ScoreSource) Option {
	return func(s *Service) { s.scores = src }
}

// WithPublisher sets the streaming publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.BoardMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service coordinates polling, reconciliation and publishing.
type Service struct {
	cfg       Config
	events    EventSource
	secondary SecondarySource
	scores    ScoreSource
	store     cache.Store
	publisher Publisher
	metrics   *metrics.BoardMetrics
	tracker   *Tracker
	log       *logrus.Entry
	now       func() time.Time

	mu           sync.RWMutex
	running      bool
	stopCh       chan struct{}
	wg           sync.WaitGroup
	board        *Board
	secondaryErr error
	lastResults  map[Stage]*StageResult

	// rebuildMu serializes board rebuilds across stage loops.
	rebuildMu sync.Mutex

	onStageComplete func(*StageResult)
	onError         func(error)
}

// New creates a Service reading primary events from events and keeping its
// snapshots in store.
func New(cfg Config, events EventSource, store cache.Store, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.EventsInterval <= 0 {
		cfg.EventsInterval = def.EventsInterval
	}
	if cfg.SecondaryInterval <= 0 {
		cfg.SecondaryInterval = def.SecondaryInterval
	}
	if cfg.ScoresInterval <= 0 {
		cfg.ScoresInterval = def.ScoresInterval
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = def.FreshnessWindow
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.Leagues == nil {
		cfg.Leagues = def.Leagues
	}

	s := &Service{
		cfg:         cfg,
		events:      events,
		store:       store,
		tracker:     NewTracker(),
		now:         time.Now,
		stopCh:      make(chan struct{}),
		lastResults: make(map[Stage]*StageResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		s.log = logrus.NewEntry(l)
	}
	s.log = s.log.WithField("component", "poller")
	return s
}

// OnStageComplete sets a callback for stage completions.
func (s *Service) OnStageComplete(fn func(*StageResult)) {
	s.onStageComplete = fn
}

// OnError sets a callback for errors.
func (s *Service) OnError(fn func(error)) {
	s.onError = fn
}

// Start runs one pass of every enabled stage, then polls in the background
// until Stop is called or ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("service already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	for _, stage := range s.stages() {
		if err := s.runStage(ctx, stage); err != nil {
			s.handleError(fmt.Errorf("initial %s poll failed: %w", stage, err))
		}
	}

	s.startLoop(ctx, StageEvents, s.cfg.EventsInterval)
	if s.secondary != nil {
		s.startLoop(ctx, StageSecondary, s.cfg.SecondaryInterval)
	}
	if s.scores != nil {
		s.startLoop(ctx, StageScores, s.cfg.ScoresInterval)
	}

	s.log.WithFields(logrus.Fields{
		"events_interval":   s.cfg.EventsInterval,
		"secondary_enabled": s.secondary != nil,
		"scores_enabled":    s.scores != nil,
		"freshness_window":  s.cfg.FreshnessWindow,
	}).Info("poller started")
	return nil
}

// Stop stops the background loops and waits for them to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("poller stopped")
}

// IsRunning returns true if the service is polling.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// RunOnce executes one pass of every enabled stage.
func (s *Service) RunOnce(ctx context.Context) error {
	var errs []error
	for _, stage := range s.stages() {
		if err := s.runStage(ctx, stage); err != nil {
			errs = append(errs, fmt.Errorf("stage %s failed: %w", stage, err))
		}
	}
	return errors.Join(errs...)
}

// Board returns the latest snapshot, or nil before the first rebuild.
func (s *Service) Board() *Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board
}

func (s *Service) stages() []Stage {
	stages := []Stage{StageScores, StageSecondary, StageEvents}
	out := stages[:0]
	for _, st := range stages {
		switch {
		case st == StageScores && s.scores == nil:
		case st == StageSecondary && s.secondary == nil:
		default:
			out = append(out, st)
		}
	}
	return out
}

// --- Background Loops ---

func (s *Service) startLoop(ctx context.Context, stage Stage, interval time.Duration) {
	s.mu.RLock()
	stopCh := s.stopCh
	s.mu.RUnlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				if err := s.runStage(ctx, stage); err != nil {
					s.handleError(fmt.Errorf("%s poll failed: %w", stage, err))
				}
			}
		}
	}()
}

// --- Stage Execution ---

func (s *Service) runStage(ctx context.Context, stage Stage) error {
	start := time.Now()
	var err error
	var data interface{}

	switch stage {
	case StageEvents:
		data, err = s.pollEvents(ctx)
	case StageSecondary:
		data, err = s.pollSecondary(ctx)
	case StageScores:
		data, err = s.pollScores(ctx)
	default:
		err = fmt.Errorf("unknown stage: %s", stage)
	}

	result := &StageResult{
		Stage:     stage,
		Success:   err == nil,
		Data:      data,
		Duration:  time.Since(start),
		Timestamp: s.now(),
	}
	if err != nil {
		result.Error = err.Error()
	}

	if s.metrics != nil {
		s.metrics.RecordPoll(string(stage), err, result.Duration.Seconds(), float64(result.Timestamp.Unix()))
	}

	s.mu.Lock()
	s.lastResults[stage] = result
	s.mu.Unlock()

	if s.onStageComplete != nil {
		s.onStageComplete(result)
	}

	if rerr := s.rebuild(ctx); rerr != nil {
		s.handleError(fmt.Errorf("rebuilding board: %w", rerr))
	}
	if s.publisher != nil {
		s.publisher.BroadcastStatus(s.GetStatus())
	}
	return err
}

func (s *Service) pollEvents(ctx context.Context) (interface{}, error) {
	events, err := s.events.OpenEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching open events: %w", err)
	}

	var previous []freshness.Record
	if _, err := s.get(ctx, cache.KeyEvents, &previous); err != nil && !errors.Is(err, cache.ErrMiss) {
		s.log.WithError(err).Warn("reading cached events")
	}

	now := s.now()
	records := mergeRecords(previous, events, now, s.cfg.CacheTTL)
	if err := s.put(ctx, cache.KeyEvents, records, now); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"fetched": len(events),
		"cached":  len(records),
	}, nil
}

func (s *Service) pollSecondary(ctx context.Context) (interface{}, error) {
	markets, err := s.secondary.ListGameMarkets(ctx, s.cfg.SecondaryTag)
	if err != nil {
		s.setSecondaryErr(err)
		return nil, fmt.Errorf("listing secondary markets: %w", err)
	}

	converted, errs := reconcile.FromGammaAll(markets)
	for _, e := range errs {
		s.log.WithError(e).Warn("skipping malformed secondary market")
	}
	if s.metrics != nil {
		s.metrics.RecordSkipped("malformed_outcomes", len(errs))
	}

	if err := s.put(ctx, cache.KeySecondary, converted, s.now()); err != nil {
		s.setSecondaryErr(err)
		return nil, err
	}
	s.setSecondaryErr(nil)

	return map[string]interface{}{
		"fetched":   len(markets),
		"converted": len(converted),
	}, nil
}

func (s *Service) pollScores(ctx context.Context) (interface{}, error) {
	games, errs := s.scores.FetchAll(ctx, s.cfg.Leagues)
	for league, err := range errs {
		s.log.WithError(err).WithField("league", league).Warn("scoreboard unavailable")
	}
	if len(games) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("scoreboards unavailable for %d leagues", len(errs))
	}

	if err := s.put(ctx, cache.KeyScores, games, s.now()); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"games":          len(games),
		"failed_leagues": len(errs),
	}, nil
}

// mergeRecords stamps the fetched events with now, in provider order, and
// keeps previously cached events that were not refetched until they are older
// than ttl. Their stale LastUpdated lets readers exclude them.
func mergeRecords(previous []freshness.Record, fetched []board.Event, now time.Time, ttl time.Duration) []freshness.Record {
	seen := make(map[string]bool, len(fetched))
	out := make([]freshness.Record, 0, len(fetched)+len(previous))
	for _, e := range fetched {
		seen[e.ID] = true
		out = append(out, freshness.Record{Event: e, LastUpdated: now})
	}
	for _, r := range previous {
		if seen[r.Event.ID] || now.Sub(r.LastUpdated) > ttl {
			continue
		}
		out = append(out, r)
	}
	return out
}

// --- Board ---

func (s *Service) rebuild(ctx context.Context) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	now := s.now()
	window := s.cfg.FreshnessWindow

	var records []freshness.Record
	if _, err := s.get(ctx, cache.KeyEvents, &records); err != nil && !errors.Is(err, cache.ErrMiss) {
		return err
	}
	fresh := freshness.Partition(records, freshness.TabAll, now, window, nil)

	secondary, secondaryErr := s.loadSecondary(ctx, now)
	scores, scoresOK := s.loadScores(ctx, now)

	events := make([]board.Event, len(fresh))
	for i, r := range fresh {
		events[i] = r.Event
	}

	results := reconcile.ReconcileAll(events, secondary, secondaryErr)
	reconciled := make(map[string]reconcile.Result, len(results))
	for _, res := range results {
		reconciled[res.EventID] = res
		for _, skipped := range res.Skipped {
			var perr *reconcile.PriceParseError
			if errors.As(skipped, &perr) {
				s.log.WithFields(logrus.Fields{
					"event_id":  res.EventID,
					"market_id": perr.MarketID,
				}).Debug("secondary price unparseable")
			}
		}
		if s.metrics != nil {
			sources := make([]string, len(res.Outcomes))
			for i, o := range res.Outcomes {
				sources[i] = string(o.BestSource)
			}
			s.metrics.RecordReconcile(res.MatchedMarkets, sources, len(res.Skipped))
		}
	}

	b := &Board{
		Version:            uuid.NewString(),
		GeneratedAt:        now,
		Records:            fresh,
		Reconciled:         reconciled,
		Liquidity:          make(map[string]int64, len(fresh)),
		SecondaryAvailable: secondaryErr == nil,
		ScoresAvailable:    scoresOK,
		scores:             scores,
	}

	counts := make(map[string]map[string]int)
	leagueUSD := make(map[string]float64)
	keep := make(map[string]bool, len(fresh))
	for _, r := range fresh {
		id := r.Event.ID
		keep[id] = true

		total := liquidity.SumEvent(liquidity.FilterCurrency(r.Event, board.CurrencyCash))
		b.Liquidity[id] = total

		if change, ok := s.tracker.Observe(id, total); ok && change.Direction != liquidity.Unchanged {
			if s.metrics != nil {
				s.metrics.RecordLiquidityChange(string(change.Direction))
			}
			if s.publisher != nil {
				s.publisher.BroadcastLiquidity(change)
			}
		}

		league := string(r.Event.League)
		if counts[league] == nil {
			counts[league] = make(map[string]int)
		}
		counts[league][string(freshness.PhaseOf(r.Event, b.ScoreStatus(r.Event)))]++
		leagueUSD[league] += float64(total) / 100
	}
	s.tracker.Forget(keep)

	if s.metrics != nil {
		s.metrics.SetBoard(counts, leagueUSD)
	}

	s.mu.Lock()
	s.board = b
	s.mu.Unlock()

	if s.publisher != nil {
		s.publisher.BroadcastBoard(b.Summary())
	}
	return nil
}

func (s *Service) loadSecondary(ctx context.Context, now time.Time) ([]reconcile.SecondaryMarket, error) {
	if s.secondary == nil {
		return nil, errSecondaryDisabled
	}

	var markets []reconcile.SecondaryMarket
	updated, err := s.get(ctx, cache.KeySecondary, &markets)
	if err != nil {
		return nil, err
	}
	if !freshness.IsFresh(updated, now, s.cfg.FreshnessWindow) {
		return nil, errSecondaryStale
	}

	s.mu.RLock()
	lastErr := s.secondaryErr
	s.mu.RUnlock()
	if lastErr != nil {
		return nil, lastErr
	}
	return markets, nil
}

func (s *Service) loadScores(ctx context.Context, now time.Time) (*freshness.ScoreIndex, bool) {
	idx := freshness.NewScoreIndex()
	if s.scores == nil {
		return idx, false
	}

	var games []espn.Game
	updated, err := s.get(ctx, cache.KeyScores, &games)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.WithError(err).Warn("reading cached scores")
		}
		return idx, false
	}
	if !freshness.IsFresh(updated, now, s.cfg.FreshnessWindow) {
		return idx, false
	}

	for _, g := range games {
		for _, d := range g.Descriptions() {
			idx.Add(d, freshness.ScoreStatus(g.Status))
		}
	}
	return idx, true
}

func (s *Service) setSecondaryErr(err error) {
	s.mu.Lock()
	s.secondaryErr = err
	s.mu.Unlock()
}

func (s *Service) get(ctx context.Context, key string, v interface{}) (time.Time, error) {
	updated, err := cache.GetJSON(ctx, s.store, key, v)
	if s.metrics != nil {
		switch {
		case err == nil:
			s.metrics.RecordCache("get", "hit")
		case errors.Is(err, cache.ErrMiss):
			s.metrics.RecordCache("get", "miss")
		default:
			s.metrics.RecordCache("get", "error")
		}
	}
	return updated, err
}

func (s *Service) put(ctx context.Context, key string, v interface{}, updatedAt time.Time) error {
	err := cache.PutJSON(ctx, s.store, key, v, updatedAt, s.cfg.CacheTTL)
	if s.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		s.metrics.RecordCache("set", result)
	}
	return err
}

func (s *Service) handleError(err error) {
	s.log.WithError(err).Warn("poll cycle error")
	if s.publisher != nil {
		s.publisher.BroadcastError(err, "poller")
	}
	if s.onError != nil {
		s.onError(err)
	}
}

// Status returns the current service status.
type Status struct {
	Running            bool                   `json:"running"`
	BoardVersion       string                 `json:"board_version,omitempty"`
	GeneratedAt        *time.Time             `json:"generated_at,omitempty"`
	Events             int                    `json:"events"`
	SecondaryAvailable bool                   `json:"secondary_available"`
	ScoresAvailable    bool                   `json:"scores_available"`
	Stages             map[Stage]*StageResult `json:"stages"`
}

// GetStatus returns the current status.
func (s *Service) GetStatus() *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &Status{
		Running: s.running,
		Stages:  make(map[Stage]*StageResult, len(s.lastResults)),
	}
	for stage, r := range s.lastResults {
		copied := *r
		copied.Data = nil
		status.Stages[stage] = &copied
	}
	if s.board != nil {
		status.BoardVersion = s.board.Version
		at := s.board.GeneratedAt
		status.GeneratedAt = &at
		status.Events = len(s.board.Records)
		status.SecondaryAvailable = s.board.SecondaryAvailable
		status.ScoresAvailable = s.board.ScoresAvailable
	}
	return status
}
