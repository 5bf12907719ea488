package worker_test

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/irwin/internal/adapters/mq/queue"
	worker "github.com/okian/irwin/internal/adapters/mq/worker"
	"github.com/okian/irwin/internal/domain/analysis"
	model "github.com/okian/irwin/internal/domain/model"
	logging "github.com/okian/irwin/pkg/logger"
	"github.com/okian/irwin/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logging.InitWithWriter(io.Discard, "text"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// Mock implementations for testing.
type mockFeed struct {
	jobs   chan model.Job
	mu     sync.Mutex
	done   []string
	closed bool
}

func newMockFeed(ids ...string) *mockFeed {
	f := &mockFeed{jobs: make(chan model.Job, len(ids)+1)}
	for _, id := range ids {
		f.jobs <- model.Job{PlayerID: id}
	}
	return f
}

func (f *mockFeed) Next(ctx context.Context) (model.Job, error) {
	select {
	case job, ok := <-f.jobs:
		if !ok {
			return model.Job{}, errors.New("closed")
		}
		return job, nil
	case <-ctx.Done():
		return model.Job{}, ctx.Err()
	}
}

func (f *mockFeed) Done(_ context.Context, job model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done = append(f.done, job.PlayerID)
	return nil
}

func (f *mockFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.jobs)
	f.closed = true
}

func (f *mockFeed) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *mockFeed) doneIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.done...)
}

type mockProvider struct {
	data map[string]model.PlayerData
	err  error
}

func (p *mockProvider) PlayerData(_ context.Context, playerID string) (model.PlayerData, error) {
	if p.err != nil {
		return model.PlayerData{}, p.err
	}
	return p.data[playerID], nil
}

type mockGames struct {
	mu      sync.Mutex
	stored  map[string][]model.Game
	saves   [][]model.Game
	saveErr error
	readErr error
}

func (r *mockGames) ByUser(_ context.Context, userID string) ([]model.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	return r.stored[userID], nil
}

func (r *mockGames) Save(_ context.Context, games []model.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, append([]model.Game(nil), games...))
	return r.saveErr
}

func (r *mockGames) saveCalls() [][]model.Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

type mockAnalyses struct {
	mu      sync.Mutex
	stored  map[string][]model.Analysis
	saves   [][]model.Analysis
	saveErr error
}

func (r *mockAnalyses) ByUser(_ context.Context, userID string) ([]model.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stored[userID], nil
}

func (r *mockAnalyses) Save(ctx context.Context, analyses []model.Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, append([]model.Analysis(nil), analyses...))
	return r.saveErr
}

func (r *mockAnalyses) saveCalls() [][]model.Analysis {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

type mockScorer struct {
	mu     sync.Mutex
	calls  []string
	nodes  []int
	err    error
	panics bool
	block  bool
	// onEvaluate runs after each evaluation has been recorded.
	onEvaluate func()
}

func (s *mockScorer) Evaluate(ctx context.Context, game model.Game, white bool, nodes int) (model.Analysis, error) {
	s.mu.Lock()
	s.calls = append(s.calls, game.ID)
	s.nodes = append(s.nodes, nodes)
	s.mu.Unlock()
	if s.onEvaluate != nil {
		s.onEvaluate()
	}

	if s.panics {
		panic("engine exploded")
	}
	if s.block {
		<-ctx.Done()
		return model.Analysis{}, ctx.Err()
	}
	if s.err != nil {
		return model.Analysis{}, s.err
	}
	return model.Analysis{GameID: game.ID, UserID: game.UserID, White: white, Nodes: nodes}, nil
}

func (s *mockScorer) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type mockBuilder struct {
	mu       sync.Mutex
	users    []string
	games    []int
	analyses []int
	err      error
}

func (b *mockBuilder) Build(_ context.Context, userID string, cache *analysis.Cache) (model.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, a := cache.Len()
	b.users = append(b.users, userID)
	b.games = append(b.games, g)
	b.analyses = append(b.analyses, a)
	if b.err != nil {
		return model.Report{}, b.err
	}
	return model.Report{ID: "r-" + userID, UserID: userID, Activation: 42, GamesTotal: g, GamesAnalysed: a}, nil
}

type mockSink struct {
	mu      sync.Mutex
	reports []model.Report
	err     error
}

func (s *mockSink) PostReport(ctx context.Context, report model.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reports = append(s.reports, report)
	return nil
}

func (s *mockSink) posted() []model.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Report(nil), s.reports...)
}

type mockMetrics struct {
	mu          sync.Mutex
	queued      []string
	started     []string
	completed   []string
	activations []int
}

func (m *mockMetrics) RecordQueued(id string, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, id)
}

func (m *mockMetrics) RecordStarted(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, id)
}

func (m *mockMetrics) RecordCompleted(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, id)
}

func (m *mockMetrics) RecordActivation(v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activations = append(m.activations, v)
}

type fixture struct {
	feed     *mockFeed
	provider *mockProvider
	games    *mockGames
	analyses *mockAnalyses
	scorer   *mockScorer
	builder  *mockBuilder
	sink     *mockSink
	metrics  *mockMetrics
}

func newFixture() *fixture {
	return &fixture{
		feed:     newMockFeed(),
		provider: &mockProvider{data: map[string]model.PlayerData{}},
		games:    &mockGames{stored: map[string][]model.Game{}},
		analyses: &mockAnalyses{stored: map[string][]model.Analysis{}},
		scorer:   &mockScorer{},
		builder:  &mockBuilder{},
		sink:     &mockSink{},
		metrics:  &mockMetrics{},
	}
}

func (f *fixture) deps() worker.Dependencies {
	return worker.Dependencies{
		Feed:     f.feed,
		Provider: f.provider,
		Games:    f.games,
		Analyses: f.analyses,
		Scorer:   f.scorer,
		Builder:  f.builder,
		Sink:     f.sink,
	}
}

func (f *fixture) worker(opts ...worker.Option) *worker.Worker {
	opts = append([]worker.Option{
		worker.WithMetrics(f.metrics),
		worker.WithRand(rand.New(rand.NewPCG(1, 2))),
	}, opts...)
	w, err := worker.New(f.deps(), opts...)
	convey.So(err, convey.ShouldBeNil)
	return w
}

func counterValue(name string) float64 {
	families, err := metrics.GetRegistry().Gather()
	convey.So(err, convey.ShouldBeNil)
	for _, f := range families {
		if f.GetName() == name && len(f.GetMetric()) > 0 {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func standardGames(n int, white string) map[string]model.RawGame {
	games := make(map[string]model.RawGame, n)
	for i := 0; i < n; i++ {
		games["g"+strconv.Itoa(i)] = model.RawGame{White: white, Black: "opponent", PGN: "e4 e5 Nf3 Nc6"}
	}
	return games
}

func TestWorker_New(t *testing.T) {
	convey.Convey("Given missing dependencies", t, func() {
		f := newFixture()
		deps := f.deps()
		deps.Scorer = nil

		convey.Convey("Then New refuses to build a worker", func() {
			w, err := worker.New(deps)
			convey.So(w, convey.ShouldBeNil)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestWorker_EndToEnd(t *testing.T) {
	convey.Convey("Given player u1 with no stored games and three fetched games", t, func() {
		f := newFixture()
		f.provider.data["u1"] = model.PlayerData{Games: map[string]model.RawGame{
			"a": {White: "u1", Black: "x", PGN: "e4 e5"},
			"b": {White: "y", Black: "u1", PGN: "d4 d5"},
			"c": {White: "u1", Black: "z", PGN: "e4 c5", InitialFen: "8/8/8/8/8/8/8/K6k w - - 0 1"},
		}}
		w := f.worker(worker.WithSampleLimit(5), worker.WithNodes(1000))

		err := w.Process(context.Background(), model.Job{PlayerID: "u1"})

		convey.Convey("Then the iteration succeeds", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(worker.Outcome(err), convey.ShouldEqual, worker.OutcomeReported)
		})

		convey.Convey("Then the two admitted games are saved once", func() {
			saves := f.games.saveCalls()
			convey.So(saves, convey.ShouldHaveLength, 1)
			convey.So(saves[0], convey.ShouldHaveLength, 2)
			convey.So(saves[0][0].ID, convey.ShouldEqual, "a")
			convey.So(saves[0][0].White, convey.ShouldBeTrue)
			convey.So(saves[0][1].ID, convey.ShouldEqual, "b")
			convey.So(saves[0][1].White, convey.ShouldBeFalse)
		})

		convey.Convey("Then both games are scored with the configured budget and perspective", func() {
			convey.So(f.scorer.called(), convey.ShouldHaveLength, 2)
			convey.So(f.scorer.nodes, convey.ShouldResemble, []int{1000, 1000})

			saves := f.analyses.saveCalls()
			convey.So(saves, convey.ShouldHaveLength, 1)
			convey.So(saves[0], convey.ShouldHaveLength, 2)
			for _, a := range saves[0] {
				convey.So(a.White, convey.ShouldEqual, a.GameID == "a")
			}
		})

		convey.Convey("Then the builder sees 2 games and 2 analyses and the report is published", func() {
			convey.So(f.builder.users, convey.ShouldResemble, []string{"u1"})
			convey.So(f.builder.games, convey.ShouldResemble, []int{2})
			convey.So(f.builder.analyses, convey.ShouldResemble, []int{2})
			convey.So(f.sink.posted(), convey.ShouldHaveLength, 1)
			convey.So(f.metrics.activations, convey.ShouldResemble, []int{42})
		})

		convey.Convey("Then timing is started and completed for the player", func() {
			convey.So(f.metrics.started, convey.ShouldResemble, []string{"u1"})
			convey.So(f.metrics.completed, convey.ShouldResemble, []string{"u1"})
		})
	})
}

func TestWorker_InvalidPayload(t *testing.T) {
	convey.Convey("Given a payload without a games collection", t, func() {
		f := newFixture()
		f.provider.data["u1"] = model.PlayerData{}
		w := f.worker()

		err := w.Process(context.Background(), model.Job{PlayerID: "u1"})

		convey.Convey("Then the iteration is abandoned as invalid", func() {
			convey.So(errors.Is(err, model.ErrInvalidPayload), convey.ShouldBeTrue)
			convey.So(worker.Outcome(err), convey.ShouldEqual, worker.OutcomeInvalid)
		})

		convey.Convey("Then no repository save, scoring or report happens", func() {
			convey.So(f.games.saveCalls(), convey.ShouldBeEmpty)
			convey.So(f.analyses.saveCalls(), convey.ShouldBeEmpty)
			convey.So(f.scorer.called(), convey.ShouldBeEmpty)
			convey.So(f.sink.posted(), convey.ShouldBeEmpty)
		})

		convey.Convey("Then the timing entry is still completed", func() {
			convey.So(f.metrics.completed, convey.ShouldResemble, []string{"u1"})
		})
	})
}

func TestWorker_RunSurvivesBadPlayers(t *testing.T) {
	convey.Convey("Given a feed with a malformed player followed by a good one", t, func() {
		f := newFixture()
		f.feed = newMockFeed("bad", "good")
		f.provider.data["bad"] = model.PlayerData{}
		f.provider.data["good"] = model.PlayerData{Games: standardGames(2, "good")}
		w := f.worker()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		errCh := make(chan error, 1)
		go func() { errCh <- w.Run(ctx) }()

		convey.So(waitFor(func() bool { return len(f.feed.doneIDs()) == 2 }), convey.ShouldBeTrue)
		f.feed.Close()

		convey.Convey("Then the loop processes the next player and stops when the feed closes", func() {
			convey.So(<-errCh, convey.ShouldBeNil)
			convey.So(f.feed.doneIDs(), convey.ShouldResemble, []string{"bad", "good"})
			reports := f.sink.posted()
			convey.So(reports, convey.ShouldHaveLength, 1)
			convey.So(reports[0].UserID, convey.ShouldEqual, "good")
			convey.So(f.games.saveCalls(), convey.ShouldHaveLength, 1)
		})
	})

	convey.Convey("Given a worker waiting on an empty feed", t, func() {
		f := newFixture()
		w := f.worker()
		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() { errCh <- w.Run(ctx) }()
		cancel()

		convey.Convey("Then cancelling the context stops the loop cleanly", func() {
			convey.So(<-errCh, convey.ShouldBeNil)
		})
	})
}

func TestWorker_PersistenceBeforeScoring(t *testing.T) {
	convey.Convey("Given four eligible games and a scorer that always fails", t, func() {
		f := newFixture()
		f.provider.data["u1"] = model.PlayerData{Games: standardGames(4, "u1")}
		f.scorer.err = errors.New("engine out of budget")
		w := f.worker(worker.WithSampleLimit(2))

		err := w.Process(context.Background(), model.Job{PlayerID: "u1"})

		convey.Convey("Then every game still reaches the repository", func() {
			saves := f.games.saveCalls()
			convey.So(saves, convey.ShouldHaveLength, 1)
			convey.So(saves[0], convey.ShouldHaveLength, 4)
		})

		convey.Convey("Then failed games are skipped and a partial report is published", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(f.scorer.called(), convey.ShouldHaveLength, 2)
			convey.So(f.analyses.saveCalls(), convey.ShouldBeEmpty)
			convey.So(f.builder.games, convey.ShouldResemble, []int{4})
			convey.So(f.builder.analyses, convey.ShouldResemble, []int{0})
			convey.So(f.sink.posted(), convey.ShouldHaveLength, 1)
		})
	})
}

func TestWorker_StoredHistory(t *testing.T) {
	convey.Convey("Given a stored analysed game that is fetched again", t, func() {
		f := newFixture()
		stored := model.Game{ID: "g0", UserID: "u1", White: true, Moves: []string{"e4", "e5"}}
		f.games.stored["u1"] = []model.Game{stored}
		f.analyses.stored["u1"] = []model.Analysis{{GameID: "g0", UserID: "u1", White: true}}
		f.provider.data["u1"] = model.PlayerData{Games: standardGames(2, "u1")}
		w := f.worker()

		err := w.Process(context.Background(), model.Job{PlayerID: "u1"})

		convey.Convey("Then the stored game wins over the re-fetch", func() {
			convey.So(err, convey.ShouldBeNil)
			saves := f.games.saveCalls()
			convey.So(saves[0], convey.ShouldHaveLength, 2)
			convey.So(saves[0][0].Moves, convey.ShouldResemble, []string{"e4", "e5"})
		})

		convey.Convey("Then only the unanalysed game is scored and saved", func() {
			convey.So(f.scorer.called(), convey.ShouldResemble, []string{"g1"})
			convey.So(f.analyses.saveCalls()[0], convey.ShouldHaveLength, 1)
			convey.So(f.builder.analyses, convey.ShouldResemble, []int{2})
		})
	})
}

func TestWorker_SampleLimit(t *testing.T) {
	convey.Convey("Given ten unanalysed games and a sample limit of three", t, func() {
		f := newFixture()
		f.provider.data["u1"] = model.PlayerData{Games: standardGames(10, "u1")}
		w := f.worker(worker.WithSampleLimit(3))

		err := w.Process(context.Background(), model.Job{PlayerID: "u1"})

		convey.Convey("Then exactly three distinct games are scored", func() {
			convey.So(err, convey.ShouldBeNil)
			called := f.scorer.called()
			convey.So(called, convey.ShouldHaveLength, 3)
			seen := map[string]bool{}
			for _, id := range called {
				seen[id] = true
			}
			convey.So(seen, convey.ShouldHaveLength, 3)
		})
	})
}

func TestWorker_BoundaryFailures(t *testing.T) {
	convey.Convey("Given a worker with healthy collaborators", t, func() {
		f := newFixture()
		f.provider.data["u1"] = model.PlayerData{Games: standardGames(2, "u1")}

		convey.Convey("When the fetch fails", func() {
			f.provider.err = errors.New("connection refused")
			err := f.worker().Process(context.Background(), model.Job{PlayerID: "u1"})

			convey.Convey("Then nothing is saved", func() {
				convey.So(errors.Is(err, worker.ErrFetch), convey.ShouldBeTrue)
				convey.So(f.games.saveCalls(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading stored games fails", func() {
			f.games.readErr = errors.New("disk gone")
			err := f.worker().Process(context.Background(), model.Job{PlayerID: "u1"})

			convey.Convey("Then the iteration stops before any save", func() {
				convey.So(errors.Is(err, worker.ErrHydrate), convey.ShouldBeTrue)
				convey.So(f.games.saveCalls(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When saving games fails", func() {
			f.games.saveErr = errors.New("disk full")
			err := f.worker().Process(context.Background(), model.Job{PlayerID: "u1"})

			convey.Convey("Then scoring is never attempted", func() {
				convey.So(errors.Is(err, worker.ErrPersistGames), convey.ShouldBeTrue)
				convey.So(worker.Outcome(err), convey.ShouldEqual, worker.OutcomePersist)
				convey.So(f.scorer.called(), convey.ShouldBeEmpty)
				convey.So(f.sink.posted(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When saving analyses fails", func() {
			f.analyses.saveErr = errors.New("disk full")
			err := f.worker().Process(context.Background(), model.Job{PlayerID: "u1"})

			convey.Convey("Then the report is still published", func() {
				convey.So(errors.Is(err, worker.ErrPersistAnalyses), convey.ShouldBeTrue)
				convey.So(f.sink.posted(), convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When the builder fails", func() {
			builds := counterValue("irwin_report_build_errors_total")
			publishes := counterValue("irwin_report_publish_errors_total")
			f.builder.err = errors.New("classifier down")
			err := f.worker().Process(context.Background(), model.Job{PlayerID: "u1"})

			convey.Convey("Then nothing is published", func() {
				convey.So(errors.Is(err, worker.ErrReport), convey.ShouldBeTrue)
				convey.So(f.sink.posted(), convey.ShouldBeEmpty)
			})

			convey.Convey("Then it is counted as a build failure, not a publish failure", func() {
				convey.So(counterValue("irwin_report_build_errors_total"), convey.ShouldEqual, builds+1)
				convey.So(counterValue("irwin_report_publish_errors_total"), convey.ShouldEqual, publishes)
			})
		})

		convey.Convey("When the iteration is cancelled during the first evaluation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			f.scorer.onEvaluate = cancel
			err := f.worker().Process(ctx, model.Job{PlayerID: "u1"})

			convey.Convey("Then scoring stops after the running evaluation", func() {
				convey.So(f.scorer.called(), convey.ShouldHaveLength, 1)
			})

			convey.Convey("Then the finished analysis is persisted and reported", func() {
				convey.So(err, convey.ShouldBeNil)
				saves := f.analyses.saveCalls()
				convey.So(saves, convey.ShouldHaveLength, 1)
				convey.So(saves[0], convey.ShouldHaveLength, 1)
				convey.So(f.sink.posted(), convey.ShouldHaveLength, 1)
				convey.So(f.sink.posted()[0].GamesAnalysed, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When publishing fails", func() {
			f.sink.err = errors.New("503")
			err := f.worker().Process(context.Background(), model.Job{PlayerID: "u1"})

			convey.Convey("Then the failure is reported as a publish error", func() {
				convey.So(errors.Is(err, worker.ErrPublish), convey.ShouldBeTrue)
				convey.So(worker.Outcome(err), convey.ShouldEqual, worker.OutcomePublish)
				convey.So(f.metrics.activations, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the scorer panics", func() {
			f.scorer.panics = true
			var err error
			convey.So(func() {
				err = f.worker().Process(context.Background(), model.Job{PlayerID: "u1"})
			}, convey.ShouldNotPanic)

			convey.Convey("Then the panic is returned as an error and timing is completed", func() {
				convey.So(errors.Is(err, worker.ErrPanic), convey.ShouldBeTrue)
				convey.So(f.metrics.completed, convey.ShouldResemble, []string{"u1"})
			})
		})

		convey.Convey("When a scoring call exceeds its timeout", func() {
			f.scorer.block = true
			w := f.worker(worker.WithTimeouts(worker.Timeouts{Score: 10 * time.Millisecond}))
			err := w.Process(context.Background(), model.Job{PlayerID: "u1"})

			convey.Convey("Then the games are skipped and the report still goes out", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(f.scorer.called(), convey.ShouldHaveLength, 2)
				convey.So(f.sink.posted(), convey.ShouldHaveLength, 1)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers on one queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(20))
		provider := &mockProvider{data: map[string]model.PlayerData{}}
		ctx := context.Background()
		for i := 0; i < 10; i++ {
			id := "p" + strconv.Itoa(i)
			provider.data[id] = model.PlayerData{Games: standardGames(2, id)}
			convey.So(q.Enqueue(ctx, model.Job{PlayerID: id}), convey.ShouldBeTrue)
		}
		convey.So(q.Close(), convey.ShouldBeNil)

		sink := &mockSink{}
		closed := 0
		var closeMu sync.Mutex
		pool, err := worker.NewPool(3, func(int) (worker.Dependencies, func() error, error) {
			return worker.Dependencies{
				Feed:     q,
				Provider: provider,
				Games:    &mockGames{stored: map[string][]model.Game{}},
				Analyses: &mockAnalyses{stored: map[string][]model.Analysis{}},
				Scorer:   &mockScorer{},
				Builder:  &mockBuilder{},
				Sink:     sink,
			}, func() error { closeMu.Lock(); closed++; closeMu.Unlock(); return nil }, nil
		})
		convey.So(err, convey.ShouldBeNil)
		convey.So(pool.Size(), convey.ShouldEqual, 3)

		runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		runErr := pool.Run(runCtx)

		convey.Convey("Then every player is reported exactly once", func() {
			convey.So(runErr, convey.ShouldBeNil)
			seen := map[string]int{}
			for _, r := range sink.posted() {
				seen[r.UserID]++
			}
			convey.So(seen, convey.ShouldHaveLength, 10)
			for _, n := range seen {
				convey.So(n, convey.ShouldEqual, 1)
			}
		})

		convey.Convey("Then Close releases every worker's resources", func() {
			convey.So(pool.Close(), convey.ShouldBeNil)
			convey.So(closed, convey.ShouldEqual, 3)
		})
	})

	convey.Convey("Given a factory that fails", t, func() {
		_, err := worker.NewPool(2, func(i int) (worker.Dependencies, func() error, error) {
			return worker.Dependencies{}, nil, errors.New("no engine")
		})

		convey.Convey("Then NewPool returns the error", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestOutcome(t *testing.T) {
	convey.Convey("Outcome classifies wrapped errors", t, func() {
		convey.So(worker.Outcome(nil), convey.ShouldEqual, worker.OutcomeReported)
		convey.So(worker.Outcome(worker.ErrHydrate), convey.ShouldEqual, worker.OutcomeHydrate)
		convey.So(worker.Outcome(errors.Join(worker.ErrFetch, context.Canceled)), convey.ShouldEqual, worker.OutcomeCancelled)
		convey.So(worker.Outcome(worker.ErrFetch), convey.ShouldEqual, worker.OutcomeFetch)
		convey.So(worker.Outcome(errors.New("other")), convey.ShouldEqual, worker.OutcomeError)
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
