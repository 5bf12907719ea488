package metrics

import (
	"sync"
	"time"
)

// Tracker turns queue lifecycle events for players into wait and processing
// observations. It is safe for concurrent use by several workers.
type Tracker struct {
	manager *Manager
	now     func() time.Time

	mu      sync.Mutex
	queued  map[string]time.Time
	started map[string]time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithManager records into m instead of the global manager.
func WithManager(m *Manager) TrackerOption {
	return func(t *Tracker) {
		if m != nil {
			t.manager = m
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a tracker bound to the global manager by default.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		manager: globalManager,
		now:     time.Now,
		queued:  make(map[string]time.Time),
		started: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordQueued remembers when a player entered the queue. A zero time is ignored.
func (t *Tracker) RecordQueued(playerID string, queuedAt time.Time) {
	if queuedAt.IsZero() {
		return
	}
	t.mu.Lock()
	t.queued[playerID] = queuedAt
	t.mu.Unlock()
}

// RecordStarted marks the start of processing and observes queue wait when known.
func (t *Tracker) RecordStarted(playerID string) {
	now := t.now()

	t.mu.Lock()
	queuedAt, ok := t.queued[playerID]
	delete(t.queued, playerID)
	t.started[playerID] = now
	inFlight := len(t.started)
	t.mu.Unlock()

	if ok {
		t.manager.RecordQueueWait(nonNegative(now.Sub(queuedAt)).Seconds())
	}
	t.manager.UpdateInFlight(inFlight)
}

// RecordCompleted observes processing time. Completions without a matching
// start are dropped.
func (t *Tracker) RecordCompleted(playerID string) {
	now := t.now()

	t.mu.Lock()
	startedAt, ok := t.started[playerID]
	delete(t.started, playerID)
	inFlight := len(t.started)
	t.mu.Unlock()

	if !ok {
		return
	}
	t.manager.RecordProcessing(nonNegative(now.Sub(startedAt)).Seconds())
	t.manager.UpdateInFlight(inFlight)
}

// RecordActivation observes a published report's activation.
func (t *Tracker) RecordActivation(activation int) {
	t.manager.RecordActivation(activation)
}

// Pending is the number of players started but not completed.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.started)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
