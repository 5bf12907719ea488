// Package queue provides an in-memory feed of player jobs.
//
// A player id is claimed from the moment it is enqueued until the worker that
// received it calls Done, so concurrent workers never process the same
// player at once.
package queue

import (
	"context"
	"sync"

	"github.com/okian/irwin/internal/domain/dedupe"
	"github.com/okian/irwin/internal/domain/model"
	"github.com/okian/irwin/pkg/metrics"
)

const defaultQueueCapacity = 1024

// InMemoryQueue is a bounded FIFO of jobs backed by a buffered channel.
type InMemoryQueue struct {
	jobs     chan model.Job
	capacity int
	claims   dedupe.Claimer

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	if q.claims == nil {
		q.claims = dedupe.NewInFlight()
	}
	q.jobs = make(chan model.Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a job. It returns false if the queue is closed or full, or if
// the player is already queued or being processed.
func (q *InMemoryQueue) Enqueue(ctx context.Context, job model.Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}
	if !q.claims.Claim(ctx, job.PlayerID) {
		return false
	}

	select {
	case q.jobs <- job:
		metrics.UpdateQueueSize(len(q.jobs))
		return true
	default:
		q.claims.Release(ctx, job.PlayerID)
		return false
	}
}

// Next blocks until a job is available, ctx is done, or the queue is closed
// and drained.
func (q *InMemoryQueue) Next(ctx context.Context) (model.Job, error) {
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return model.Job{}, ErrClosed
		}
		metrics.UpdateQueueSize(len(q.jobs))
		return job, nil
	case <-ctx.Done():
		return model.Job{}, ctx.Err()
	}
}

// Done releases the claim on the job's player so it can be queued again.
func (q *InMemoryQueue) Done(ctx context.Context, job model.Job) error {
	q.claims.Release(ctx, job.PlayerID)
	return nil
}

// Claimed reports whether the player is queued or being processed.
func (q *InMemoryQueue) Claimed(ctx context.Context, playerID string) bool {
	return q.claims.Claimed(ctx, playerID)
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len() int {
	return len(q.jobs)
}

// Close stops accepting jobs. Jobs already queued can still be taken by Next.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
