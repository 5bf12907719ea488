// Package worker drives players through the deep analysis pipeline.
//
// One iteration takes a player from the feed, fetches their games, merges
// them with stored games and analyses, persists the games, scores a bounded
// sample of unanalysed games, persists the new analyses and publishes a
// report. Iterations are sequential within a worker; a Pool runs several
// workers against the same feed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/irwin/internal/domain/analysis"
	"github.com/okian/irwin/internal/domain/eligibility"
	"github.com/okian/irwin/internal/domain/model"
	"github.com/okian/irwin/pkg/logger"
	"github.com/okian/irwin/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultSampleLimit    = 10
	defaultNodes          = 4_500_000
	defaultFeedRetryDelay = time.Second
)

// Iteration outcomes, used as metric labels.
const (
	OutcomeReported  = "reported"
	OutcomeInvalid   = "invalid_payload"
	OutcomeFetch     = "fetch_error"
	OutcomeHydrate   = "hydrate_error"
	OutcomePersist   = "persist_error"
	OutcomeReport    = "report_error"
	OutcomePublish   = "publish_error"
	OutcomePanic     = "panic"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Feed hands out players to analyse. It must not hand the same player to two
// callers before Done is called for it.
type Feed interface {
	Next(ctx context.Context) (model.Job, error)
	Done(ctx context.Context, job model.Job) error
}

// Provider fetches a player's recent games.
type Provider interface {
	PlayerData(ctx context.Context, playerID string) (model.PlayerData, error)
}

// GameRepository stores games. Save is an upsert by id.
type GameRepository interface {
	ByUser(ctx context.Context, userID string) ([]model.Game, error)
	Save(ctx context.Context, games []model.Game) error
}

// AnalysisRepository stores analyses. Save is an upsert by game id.
type AnalysisRepository interface {
	ByUser(ctx context.Context, userID string) ([]model.Analysis, error)
	Save(ctx context.Context, analyses []model.Analysis) error
}

// Scorer evaluates a game from one side's perspective within a node budget.
type Scorer interface {
	Evaluate(ctx context.Context, game model.Game, white bool, nodes int) (model.Analysis, error)
}

// Builder turns a populated cache into a report. It must not modify the cache.
type Builder interface {
	Build(ctx context.Context, userID string, cache *analysis.Cache) (model.Report, error)
}

// Sink publishes reports.
type Sink interface {
	PostReport(ctx context.Context, report model.Report) error
}

// Metrics observes queue timing and report activation. It never affects
// control flow.
type Metrics interface {
	RecordQueued(playerID string, queuedAt time.Time)
	RecordStarted(playerID string)
	RecordCompleted(playerID string)
	RecordActivation(activation int)
}

// Dependencies groups the collaborators a Worker talks to.
type Dependencies struct {
	Feed     Feed
	Provider Provider
	Games    GameRepository
	Analyses AnalysisRepository
	Scorer   Scorer
	Builder  Builder
	Sink     Sink
}

func (d Dependencies) validate() error {
	switch {
	case d.Feed == nil:
		return errors.New("worker: feed is required")
	case d.Provider == nil:
		return errors.New("worker: provider is required")
	case d.Games == nil:
		return errors.New("worker: game repository is required")
	case d.Analyses == nil:
		return errors.New("worker: analysis repository is required")
	case d.Scorer == nil:
		return errors.New("worker: scorer is required")
	case d.Builder == nil:
		return errors.New("worker: builder is required")
	case d.Sink == nil:
		return errors.New("worker: sink is required")
	}
	return nil
}

// Timeouts bounds the blocking stages of an iteration.
type Timeouts struct {
	Fetch      time.Duration
	Repository time.Duration
	Score      time.Duration
	Publish    time.Duration
}

// Worker runs iterations one player at a time.
type Worker struct {
	deps    Dependencies
	metrics Metrics
	name    string

	sampleLimit    int
	nodes          int
	timeouts       Timeouts
	rng            *rand.Rand
	feedRetryDelay time.Duration

	logger logger.Logger
}

// New creates a worker with configuration options.
func New(deps Dependencies, opts ...Option) (*Worker, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	w := &Worker{
		deps:           deps,
		metrics:        nopMetrics{},
		name:           "worker",
		sampleLimit:    defaultSampleLimit,
		nodes:          defaultNodes,
		feedRetryDelay: defaultFeedRetryDelay,
		logger:         logger.Get(),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.logger = w.logger.Named(w.name)

	return w, nil
}

// Name returns the worker name.
func (w *Worker) Name() string { return w.name }

// Run processes players until ctx is canceled or the feed is closed and drained.
// A failed iteration is logged and never stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info(ctx, "worker started")
	defer w.logger.Info(ctx, "worker stopped")

	for {
		job, err := w.deps.Feed.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if closed, ok := w.deps.Feed.(interface{ IsClosed() bool }); ok && closed.IsClosed() {
				return nil
			}
			w.logger.Warn(ctx, "feed read failed", logger.Error(err))
			if !sleep(ctx, w.feedRetryDelay) {
				return nil
			}
			continue
		}

		err = w.Process(ctx, job)
		outcome := Outcome(err)
		metrics.RecordIteration(outcome)
		if err != nil {
			w.logger.Error(ctx, "iteration failed",
				logger.String("player", job.PlayerID),
				logger.String("outcome", outcome),
				logger.Error(err),
			)
		}

		if err := w.deps.Feed.Done(ctx, job); err != nil {
			w.logger.Warn(ctx, "feed done failed", logger.String("player", job.PlayerID), logger.Error(err))
		}
	}
}

// Process runs one iteration for job. The returned error wraps one of the
// package sentinels or model.ErrInvalidPayload; a panic is recovered and
// reported as ErrPanic.
func (w *Worker) Process(ctx context.Context, job model.Job) (err error) {
	log := w.logger.With(
		logger.String("player", job.PlayerID),
		logger.String("iteration", uuid.NewString()),
	)

	w.metrics.RecordQueued(job.PlayerID, job.QueuedAt)
	w.metrics.RecordStarted(job.PlayerID)
	defer w.metrics.RecordCompleted(job.PlayerID)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	start := time.Now()
	log.Debug(ctx, "iteration started")

	data, err := w.fetch(ctx, job.PlayerID)
	if err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	cache, err := w.hydrate(ctx, job.PlayerID, data)
	if err != nil {
		return err
	}

	games, _ := cache.Lists()
	if err := w.saveGames(ctx, games); err != nil {
		return err
	}

	fresh := w.score(ctx, log, cache)

	// Analyses already produced are kept and reported even when ctx was
	// cancelled while scoring. The remaining stages ignore cancellation and
	// are bounded by their own timeouts.
	finish := context.WithoutCancel(ctx)

	var persistErr error
	if len(fresh) > 0 {
		if err := w.saveAnalyses(finish, fresh); err != nil {
			log.Error(ctx, "saving analyses failed, publishing anyway", logger.Error(err))
			persistErr = err
		}
	}

	report, err := w.deps.Builder.Build(finish, job.PlayerID, cache)
	if err != nil {
		metrics.RecordBuildError()
		return errors.Join(fmt.Errorf("%w: %w", ErrReport, err), persistErr)
	}

	if err := w.publish(finish, report); err != nil {
		metrics.RecordPublishError()
		return errors.Join(err, persistErr)
	}
	metrics.RecordReportPublished()
	w.metrics.RecordActivation(report.Activation)

	log.Info(ctx, "report published",
		logger.Int("games", len(games)),
		logger.Int("analysed", len(fresh)),
		logger.Int("activation", report.Activation),
		logger.Duration("elapsed", time.Since(start)),
	)
	return persistErr
}

func (w *Worker) fetch(ctx context.Context, playerID string) (model.PlayerData, error) {
	fetchCtx, cancel := stage(ctx, w.timeouts.Fetch)
	defer cancel()

	data, err := w.deps.Provider.PlayerData(fetchCtx, playerID)
	if err != nil {
		return model.PlayerData{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return data, nil
}

// hydrate builds a fresh cache from stored games and analyses, then merges
// the admitted fetched games. Stored data goes in first so it wins over a
// re-fetch of the same id.
func (w *Worker) hydrate(ctx context.Context, playerID string, data model.PlayerData) (*analysis.Cache, error) {
	repoCtx, cancel := stage(ctx, w.timeouts.Repository)
	defer cancel()

	stored, err := w.deps.Games.ByUser(repoCtx, playerID)
	if err != nil {
		metrics.RecordRepositoryError("games_by_user")
		return nil, fmt.Errorf("%w: games: %w", ErrHydrate, err)
	}
	analysed, err := w.deps.Analyses.ByUser(repoCtx, playerID)
	if err != nil {
		metrics.RecordRepositoryError("analyses_by_user")
		return nil, fmt.Errorf("%w: analyses: %w", ErrHydrate, err)
	}

	var opts []analysis.Option
	if w.rng != nil {
		opts = append(opts, analysis.WithRand(w.rng))
	}
	cache := analysis.New(playerID, opts...)
	cache.AddGames(stored...)
	cache.AddAnalyses(analysed...)

	admitted, rejected := eligibility.Games(playerID, data)
	cache.AddGames(admitted...)
	metrics.RecordGamesAdmitted(len(admitted))
	metrics.RecordGamesRejected(rejected)

	return cache, nil
}

func (w *Worker) saveGames(ctx context.Context, games []model.Game) error {
	repoCtx, cancel := stage(ctx, w.timeouts.Repository)
	defer cancel()

	start := time.Now()
	err := w.deps.Games.Save(repoCtx, games)
	metrics.RecordRepositoryLatency("save_games", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordRepositoryError("save_games")
		return fmt.Errorf("%w: %w", ErrPersistGames, err)
	}
	return nil
}

// score evaluates a sample of unanalysed games. A failed game is skipped and
// retried on a later visit to the player. Scoring stops early once ctx is done.
func (w *Worker) score(ctx context.Context, log logger.Logger, cache *analysis.Cache) []model.Analysis {
	sample := cache.Sample(w.sampleLimit)
	fresh := make([]model.Analysis, 0, len(sample))

	for _, game := range sample {
		if ctx.Err() != nil {
			break
		}

		scoreCtx, cancel := stage(ctx, w.timeouts.Score)
		start := time.Now()
		result, err := w.deps.Scorer.Evaluate(scoreCtx, game, game.White, w.nodes)
		cancel()
		metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))

		if err != nil {
			metrics.RecordScoringError()
			log.Warn(ctx, "scoring failed, skipping game", logger.String("game", game.ID), logger.Error(err))
			continue
		}

		cache.AddAnalyses(result)
		fresh = append(fresh, result)
		metrics.RecordAnalysisProduced()
	}
	return fresh
}

func (w *Worker) saveAnalyses(ctx context.Context, analyses []model.Analysis) error {
	repoCtx, cancel := stage(ctx, w.timeouts.Repository)
	defer cancel()

	start := time.Now()
	err := w.deps.Analyses.Save(repoCtx, analyses)
	metrics.RecordRepositoryLatency("save_analyses", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordRepositoryError("save_analyses")
		return fmt.Errorf("%w: %w", ErrPersistAnalyses, err)
	}
	return nil
}

func (w *Worker) publish(ctx context.Context, report model.Report) error {
	publishCtx, cancel := stage(ctx, w.timeouts.Publish)
	defer cancel()

	if err := w.deps.Sink.PostReport(publishCtx, report); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

// Outcome classifies the result of Process for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeReported
	case errors.Is(err, ErrPanic):
		return OutcomePanic
	case errors.Is(err, model.ErrInvalidPayload):
		return OutcomeInvalid
	case errors.Is(err, ErrFetch):
		if errors.Is(err, context.Canceled) {
			return OutcomeCancelled
		}
		return OutcomeFetch
	case errors.Is(err, ErrHydrate):
		return OutcomeHydrate
	case errors.Is(err, ErrPersistGames), errors.Is(err, ErrPersistAnalyses):
		return OutcomePersist
	case errors.Is(err, ErrReport):
		return OutcomeReport
	case errors.Is(err, ErrPublish):
		return OutcomePublish
	default:
		return OutcomeError
	}
}

// stage derives a context for one blocking stage. d <= 0 leaves it unbounded.
func stage(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordQueued(string, time.Time) {}
func (nopMetrics) RecordStarted(string)           {}
func (nopMetrics) RecordCompleted(string)         {}
func (nopMetrics) RecordActivation(int)           {}
