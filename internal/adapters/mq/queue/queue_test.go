package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/irwin/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	queuedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !q.Enqueue(ctx, model.Job{PlayerID: "u1", QueuedAt: queuedAt}) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	job, err := q.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.PlayerID != "u1" || !job.QueuedAt.Equal(queuedAt) {
		t.Errorf("unexpected job %+v", job)
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, model.Job{PlayerID: "a"}) || !q.Enqueue(ctx, model.Job{PlayerID: "b"}) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, model.Job{PlayerID: "c"}) {
		t.Error("expected enqueue to fail when full")
	}

	// A refused job must not keep its claim.
	if _, err := q.Next(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Enqueue(ctx, model.Job{PlayerID: "c"}) {
		t.Error("expected enqueue of c to succeed after space freed")
	}
}

func TestInMemoryQueue_RefusesClaimedPlayers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	if !q.Enqueue(ctx, model.Job{PlayerID: "u1"}) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, model.Job{PlayerID: "u1"}) {
		t.Error("expected duplicate queued player to be refused")
	}

	job, err := q.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Enqueue(ctx, model.Job{PlayerID: "u1"}) {
		t.Error("expected player being processed to be refused")
	}
	if !q.Claimed(ctx, "u1") {
		t.Error("expected player being processed to be claimed")
	}

	if err := q.Done(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Claimed(ctx, "u1") {
		t.Error("expected claim to be released by Done")
	}
	if !q.Enqueue(ctx, model.Job{PlayerID: "u1"}) {
		t.Error("expected player to be accepted after Done")
	}
}

func TestInMemoryQueue_NextBlocksUntilContextDone(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, model.Job{PlayerID: "u1"}) {
		t.Fatal("expected enqueue to succeed")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, model.Job{PlayerID: "u2"}) {
		t.Error("expected enqueue on closed queue to fail")
	}

	// Queued jobs drain before ErrClosed.
	if job, err := q.Next(ctx); err != nil || job.PlayerID != "u1" {
		t.Errorf("expected u1 to drain, got %+v, %v", job, err)
	}
	if _, err := q.Next(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestInMemoryQueue_ConcurrentConsumersGetDistinctPlayers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		q.Enqueue(ctx, model.Job{PlayerID: string(rune('A' + i))})
	}
	_ = q.Close()

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := q.Next(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[job.PlayerID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 100 {
		t.Errorf("expected 100 distinct players, got %d", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("player %q delivered %d times", id, n)
		}
	}
}
