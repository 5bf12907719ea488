// Package worker drives players through the deep analysis pipeline.
package worker

import (
	"math/rand/v2"
	"time"

	"github.com/okian/irwin/pkg/logger"
)

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithSampleLimit bounds how many unanalysed games are scored per iteration.
func WithSampleLimit(limit int) Option {
	return func(w *Worker) {
		w.sampleLimit = limit
	}
}

// WithNodes sets the engine node budget passed to the scorer for every game.
func WithNodes(nodes int) Option {
	return func(w *Worker) {
		if nodes > 0 {
			w.nodes = nodes
		}
	}
}

// WithTimeouts bounds each blocking stage. A zero duration leaves that stage unbounded.
func WithTimeouts(t Timeouts) Option {
	return func(w *Worker) {
		w.timeouts = t
	}
}

// WithRand sets the source used to sample games. A rand.Rand is not safe
// for concurrent use: a single worker may own r, and NewPool gives every
// worker its own source seeded from r.
func WithRand(r *rand.Rand) Option {
	return func(w *Worker) {
		w.rng = r
	}
}

// WithFeedRetryDelay sets the pause after a failed feed read.
func WithFeedRetryDelay(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.feedRetryDelay = d
		}
	}
}

// WithMetrics sets the sink for queue timing and activation observations.
func WithMetrics(m Metrics) Option {
	return func(w *Worker) {
		if m != nil {
			w.metrics = m
		}
	}
}
