// Package service wires the deep-queue workers, their collaborators and the
// state exposed to the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/irwin/internal/adapters/engine"
	"github.com/okian/irwin/internal/adapters/lichess"
	"github.com/okian/irwin/internal/adapters/mq/queue"
	"github.com/okian/irwin/internal/adapters/mq/worker"
	"github.com/okian/irwin/internal/adapters/repository"
	"github.com/okian/irwin/internal/config"
	"github.com/okian/irwin/internal/domain/dedupe"
	"github.com/okian/irwin/internal/domain/model"
	"github.com/okian/irwin/internal/domain/report"
	"github.com/okian/irwin/pkg/logger"
	"github.com/okian/irwin/pkg/metrics"
	"github.com/okian/irwin/pkg/retry"
)

// ErrNotStarted is returned by operations that need a running service.
var ErrNotStarted = errors.New("service not started")

// ScorerFactory builds the scorer owned by worker i and a function that
// releases it.
type ScorerFactory func(i int) (worker.Scorer, func() error, error)

// Service owns the repositories, the feed and the worker pool.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	logger logger.Logger

	// Overrides for the remote side. When nil the lichess client is used.
	provider      worker.Provider
	sink          worker.Sink
	scorerFactory ScorerFactory

	store   *repository.SQLiteStore
	queue   *queue.InMemoryQueue
	client  *lichess.Client
	pool    *worker.Pool
	tracker *metrics.Tracker

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration the service is built from.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProvider replaces the remote player data provider.
func WithProvider(p worker.Provider) Option {
	return func(s *Service) {
		s.provider = p
	}
}

// WithSink replaces the remote report sink.
func WithSink(sink worker.Sink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// WithScorerFactory replaces the UCI engine scorer.
func WithScorerFactory(f ScorerFactory) Option {
	return func(s *Service) {
		s.scorerFactory = f
	}
}

// New constructs a new Service. Without WithConfig the defaults of
// config.New are used.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New(context.Background())}
	for _, opt := range opts {
		opt(s)
	}
	if s.scorerFactory == nil {
		s.scorerFactory = s.engineScorer
	}
	return s
}

// Start builds every component and runs the workers in the background.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting deep queue service",
		logger.String("feed", s.cfg.Feed.Mode),
		logger.String("db", s.cfg.DB.Path),
		logger.Int("workers", s.cfg.Worker.Count),
	)

	store, err := repository.OpenSQLite(ctx, s.cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	s.store = store

	policy := s.retryPolicy()
	games := repository.NewRetryingGames(store.Games(), policy)
	analyses := repository.NewRetryingAnalyses(store.Analyses(), policy)

	s.client = lichess.New(s.cfg.API.URL,
		lichess.WithToken(s.cfg.API.Token),
		lichess.WithTimeout(s.cfg.API.Timeout),
		lichess.WithRateLimit(s.cfg.API.RequestsPerSecond, 1),
		lichess.WithPollInterval(s.cfg.API.PollInterval),
		lichess.WithRetryPolicy(policy),
	)
	provider := s.provider
	if provider == nil {
		provider = s.client
	}
	sink := s.sink
	if sink == nil {
		sink = s.client
	}

	var feed worker.Feed = s.client
	if s.cfg.Feed.Mode == config.FeedModeMemory {
		s.queue = queue.NewInMemoryQueue(
			queue.WithCapacity(s.cfg.Feed.QueueSize),
			queue.WithClaimer(dedupe.NewInFlight()),
		)
		metrics.UpdateQueueCapacity(s.cfg.Feed.QueueSize)
		feed = s.queue
	}

	builder := report.New()
	s.tracker = metrics.NewTracker()

	factory := func(i int) (worker.Dependencies, func() error, error) {
		scorer, closer, err := s.scorerFactory(i)
		if err != nil {
			return worker.Dependencies{}, nil, err
		}
		return worker.Dependencies{
			Feed:     feed,
			Provider: provider,
			Games:    games,
			Analyses: analyses,
			Scorer:   scorer,
			Builder:  builder,
			Sink:     sink,
		}, closer, nil
	}

	pool, err := worker.NewPool(s.cfg.Worker.Count, factory,
		worker.WithSampleLimit(s.cfg.Worker.SampleLimit),
		worker.WithNodes(s.cfg.Engine.Nodes),
		worker.WithTimeouts(worker.Timeouts{
			Fetch:      s.cfg.Worker.FetchTimeout,
			Repository: s.cfg.Worker.RepositoryTimeout,
			Score:      s.cfg.Worker.ScoreTimeout,
			Publish:    s.cfg.Worker.PublishTimeout,
		}),
		worker.WithMetrics(s.tracker),
	)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("build workers: %w", err)
	}
	s.pool = pool

	for _, id := range s.cfg.Feed.Players {
		if s.queue == nil {
			break
		}
		if !s.enqueue(ctx, model.Job{PlayerID: id, QueuedAt: time.Now().UTC()}) {
			s.logger.Warn(ctx, "seed player refused", logger.String("player", id))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := pool.Run(runCtx); err != nil {
			s.logger.Error(runCtx, "worker pool stopped", logger.Error(err))
			s.mu.Lock()
			s.runErr = err
			s.mu.Unlock()
		}
	}()

	s.started = true
	s.logger.Info(ctx, "deep queue service started", logger.Int("workers", pool.Size()))
	return nil
}

// Stop cancels the workers, waits for them and releases every resource.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping deep queue service...")

	if s.queue != nil {
		_ = s.queue.Close()
	}
	cancel()
	<-done

	if err := s.pool.Close(); err != nil {
		s.logger.Warn(ctx, "close workers", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "close repository", logger.Error(err))
	}
	s.logger.Info(ctx, "deep queue service stopped")
}

// Wait blocks until the workers stop and returns the pool error, if any.
func (s *Service) Wait() error {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done == nil {
		return ErrNotStarted
	}
	<-done
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runErr
}

// Enqueue queues a player on the in-memory feed. It returns false when the
// feed is remote, the player is already claimed or the queue is full.
func (s *Service) Enqueue(ctx context.Context, job model.Job) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false
	}
	return s.enqueue(ctx, job)
}

// Claimed reports whether the player is queued or being processed on the
// in-memory feed.
func (s *Service) Claimed(ctx context.Context, playerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started || s.queue == nil {
		return false
	}
	return s.queue.Claimed(ctx, playerID)
}

func (s *Service) enqueue(ctx context.Context, job model.Job) bool {
	if s.queue == nil {
		return false
	}
	ok := s.queue.Enqueue(ctx, job)
	if ok {
		metrics.UpdateQueueSize(s.queue.Len())
	}
	return ok
}

// Ping reports whether the repository is reachable.
func (s *Service) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return ErrNotStarted
	}
	return s.store.Ping(ctx)
}

// MemoryFeed reports whether players are submitted through Enqueue.
func (s *Service) MemoryFeed() bool {
	return s.cfg.Feed.Mode == config.FeedModeMemory
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.cfg.Worker.Count,
		"feedMode":    s.cfg.Feed.Mode,
		"sampleLimit": s.cfg.Worker.SampleLimit,
		"nodes":       s.cfg.Engine.Nodes,
	}

	if s.started {
		stats["inFlight"] = s.tracker.Pending()
		if s.queue != nil {
			queueLen := s.queue.Len()
			stats["queueLength"] = queueLen
			stats["queueCapacity"] = s.cfg.Feed.QueueSize
			metrics.UpdateQueueSize(queueLen)
		}
	}

	return stats
}

func (s *Service) retryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	if s.cfg.Retry.MaxTries > 0 {
		p.MaxTries = s.cfg.Retry.MaxTries
	}
	if s.cfg.Retry.InitialInterval > 0 {
		p.InitialInterval = s.cfg.Retry.InitialInterval
	}
	if s.cfg.Retry.MaxInterval > 0 {
		p.MaxInterval = s.cfg.Retry.MaxInterval
	}
	return p
}

func (s *Service) engineScorer(int) (worker.Scorer, func() error, error) {
	eng, err := engine.New(s.cfg.Engine.Path,
		engine.WithThreads(s.cfg.Engine.Threads),
		engine.WithHash(s.cfg.Engine.Memory),
	)
	if err != nil {
		return nil, nil, err
	}
	return eng, eng.Close, nil
}
