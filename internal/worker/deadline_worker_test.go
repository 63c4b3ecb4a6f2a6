package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

type memoryQueue struct {
	mu      sync.Mutex
	entries map[uuid.UUID]time.Time
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{entries: make(map[uuid.UUID]time.Time)}
}

func (q *memoryQueue) Arm(_ context.Context, attemptID uuid.UUID, deadline time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.entries[attemptID]; !exists {
		q.entries[attemptID] = deadline
	}
	return nil
}

func (q *memoryQueue) Cancel(_ context.Context, attemptID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, attemptID)
	return nil
}

func (q *memoryQueue) Due(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []uuid.UUID
	for id, deadline := range q.entries {
		if !deadline.After(now) {
			due = append(due, id)
		}
	}
	return due, nil
}

func (q *memoryQueue) contains(attemptID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[attemptID]
	return ok
}

type fakeFinisher struct {
	mu       sync.Mutex
	submits  map[uuid.UUID]int
	failOnce map[uuid.UUID]bool
	overdue  []model.AttemptDeadline
}

func newFakeFinisher() *fakeFinisher {
	return &fakeFinisher{
		submits:  make(map[uuid.UUID]int),
		failOnce: make(map[uuid.UUID]bool),
	}
}

var errSubmitFailed = context.DeadlineExceeded

func (f *fakeFinisher) SubmitExpired(_ context.Context, attemptID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOnce[attemptID] {
		f.failOnce[attemptID] = false
		return errSubmitFailed
	}
	f.submits[attemptID]++
	return nil
}

func (f *fakeFinisher) OverdueAttempts(_ context.Context, _ time.Time) ([]model.AttemptDeadline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overdue, nil
}

func (f *fakeFinisher) submitCount(attemptID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits[attemptID]
}

func newTestWorker(q DeadlineQueue, f Finisher) *DeadlineWorker {
	return NewDeadlineWorker(q, f, time.Second, time.Minute, zerolog.Nop())
}

func TestArmIsIdempotent(t *testing.T) {
	q := newMemoryQueue()
	ctx := context.Background()
	id := uuid.New()
	first := time.Now().Add(time.Minute)

	if err := q.Arm(ctx, id, first); err != nil {
		t.Fatalf("arm: %v", err)
	}
	// Re-arming must not move the deadline.
	if err := q.Arm(ctx, id, first.Add(time.Hour)); err != nil {
		t.Fatalf("re-arm: %v", err)
	}

	due, err := q.Due(ctx, first.Add(time.Second))
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0] != id {
		t.Fatalf("expected original deadline to be due, got %v", due)
	}
}

func TestCancelRemovesDeadline(t *testing.T) {
	q := newMemoryQueue()
	ctx := context.Background()
	id := uuid.New()

	if err := q.Arm(ctx, id, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if err := q.Cancel(ctx, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	due, err := q.Due(ctx, time.Now())
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected empty queue after cancel, got %v", due)
	}
}

func TestDrainDueSubmitsAndDequeues(t *testing.T) {
	q := newMemoryQueue()
	f := newFakeFinisher()
	w := newTestWorker(q, f)
	ctx := context.Background()

	expired := uuid.New()
	future := uuid.New()
	_ = q.Arm(ctx, expired, time.Now().Add(-time.Second))
	_ = q.Arm(ctx, future, time.Now().Add(time.Hour))

	w.drainDue(ctx)

	if got := f.submitCount(expired); got != 1 {
		t.Fatalf("expired attempt submits = %d, want 1", got)
	}
	if got := f.submitCount(future); got != 0 {
		t.Fatalf("future attempt submits = %d, want 0", got)
	}
	if q.contains(expired) {
		t.Fatal("expired attempt still queued after submit")
	}
	if !q.contains(future) {
		t.Fatal("future attempt dropped from queue")
	}
}

func TestDrainDueRetriesFailedSubmit(t *testing.T) {
	q := newMemoryQueue()
	f := newFakeFinisher()
	w := newTestWorker(q, f)
	ctx := context.Background()

	id := uuid.New()
	_ = q.Arm(ctx, id, time.Now().Add(-time.Second))
	f.failOnce[id] = true

	// First pass fails; the entry must survive for the next poll.
	w.drainDue(ctx)
	if got := f.submitCount(id); got != 0 {
		t.Fatalf("submits after failed pass = %d, want 0", got)
	}
	if !q.contains(id) {
		t.Fatal("entry dequeued despite failed submit")
	}

	w.drainDue(ctx)
	if got := f.submitCount(id); got != 1 {
		t.Fatalf("submits after retry = %d, want 1", got)
	}
	if q.contains(id) {
		t.Fatal("entry still queued after successful retry")
	}
}

func TestSweepSubmitsOverdueAttempts(t *testing.T) {
	q := newMemoryQueue()
	f := newFakeFinisher()
	w := newTestWorker(q, f)
	ctx := context.Background()

	// Overdue in Postgres but never armed in the queue.
	id := uuid.New()
	f.overdue = []model.AttemptDeadline{{AttemptID: id, DeadlineAt: time.Now().Add(-time.Minute)}}

	w.sweepOverdue(ctx)

	if got := f.submitCount(id); got != 1 {
		t.Fatalf("sweep submits = %d, want 1", got)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	q := newMemoryQueue()
	f := newFakeFinisher()
	w := NewDeadlineWorker(q, f, 10*time.Millisecond, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
}
