package worker

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/okian/irwin/pkg/logger"
	"github.com/okian/irwin/pkg/metrics"
)

// Factory builds the Dependencies for worker i. It lets each worker own a
// scorer, since an engine process cannot be shared between workers.
type Factory func(i int) (Dependencies, func() error, error)

// Pool manages multiple workers sharing one feed.
type Pool struct {
	workers []*Worker
	closers []func() error
	logger  logger.Logger
}

// NewPool creates count workers from factory. Options are applied to every
// worker after its name is set. A source set with WithRand only seeds the
// per-worker sources. On error every worker already built is closed.
func NewPool(count int, factory Factory, opts ...Option) (*Pool, error) {
	if count < 1 {
		count = 1
	}

	p := &Pool{
		workers: make([]*Worker, 0, count),
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < count; i++ {
		deps, closer, err := factory(i)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("build worker %d: %w", i, err)
		}
		if closer != nil {
			p.closers = append(p.closers, closer)
		}

		w, err := New(deps, append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)...)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("build worker %d: %w", i, err)
		}
		if w.rng != nil {
			w.rng = rand.New(rand.NewPCG(w.rng.Uint64(), w.rng.Uint64()))
		}
		p.workers = append(p.workers, w)
	}

	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Run starts every worker and blocks until all have stopped.
func (p *Pool) Run(ctx context.Context) error {
	metrics.UpdateWorkerCount(len(p.workers))
	defer metrics.UpdateWorkerCount(0)

	p.logger.Info(ctx, "starting workers", logger.Int("count", len(p.workers)))

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}

// Close releases per-worker resources such as engine processes.
func (p *Pool) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	p.closers = nil
	return first
}
