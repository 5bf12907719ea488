// Package dedupe tracks player ids that are queued or being processed so a
// feed never hands the same player to two workers at once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Claimer records in-flight ids.
type Claimer interface {
	// Claim atomically records id if it is not already claimed.
	// Returns true if the caller now owns the claim, false if the id was
	// already claimed or the set is full.
	Claim(ctx context.Context, id string) bool
	// Release drops the claim on id. Releasing an unknown id is a no-op.
	Release(ctx context.Context, id string)
	// Claimed reports whether id is currently claimed.
	Claimed(ctx context.Context, id string) bool
	Size() int64
}

// InFlight implements Claimer with a mutex guarded set.
// A maxSize <= 0 means unbounded.
type InFlight struct {
	mu      sync.Mutex
	ids     map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInFlight creates an empty claim set.
func NewInFlight(opts ...Option) *InFlight {
	d := &InFlight{
		ids: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Claim records id and returns true if it was not yet claimed.
func (d *InFlight) Claim(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.ids[id]; exists {
		return false
	}
	if d.maxSize > 0 && len(d.ids) >= d.maxSize {
		return false
	}

	d.ids[id] = struct{}{}
	d.size.Add(1)
	return true
}

// Release drops the claim on id.
func (d *InFlight) Release(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.ids[id]; exists {
		delete(d.ids, id)
		d.size.Add(-1)
	}
}

// Claimed reports whether id is currently claimed.
func (d *InFlight) Claimed(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, exists := d.ids[id]
	return exists
}

// Size returns the number of claimed ids.
func (d *InFlight) Size() int64 {
	return d.size.Load()
}
