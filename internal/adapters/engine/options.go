// Package engine scores games with a UCI chess engine.
package engine

import (
	"time"

	"github.com/okian/irwin/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithThreads sets the engine Threads option.
func WithThreads(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.threads = n
		}
	}
}

// WithHash sets the engine Hash option in megabytes.
func WithHash(mb int) Option {
	return func(e *Engine) {
		if mb > 0 {
			e.hash = mb
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source stamped on analyses.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
