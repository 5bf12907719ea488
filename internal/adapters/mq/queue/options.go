// Package queue provides an in-memory feed of player jobs.
package queue

import "github.com/okian/irwin/internal/domain/dedupe"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of waiting jobs.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithClaimer replaces the in-flight claim set.
func WithClaimer(c dedupe.Claimer) Option {
	return func(q *InMemoryQueue) {
		if c != nil {
			q.claims = c
		}
	}
}
