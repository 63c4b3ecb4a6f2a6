package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dvmnase/onlinecourses-backend/internal/config"
	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

// DeadlineQueue is the durable store of armed deadlines, ordered by due time.
// Arm is idempotent; re-arming an existing attempt keeps the original score.
type DeadlineQueue interface {
	Arm(ctx context.Context, attemptID uuid.UUID, deadline time.Time) error
	Cancel(ctx context.Context, attemptID uuid.UUID) error
	Due(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// Finisher force-submits an attempt whose deadline passed. Submission is
// idempotent downstream, so the worker never needs delivery-exactly-once.
type Finisher interface {
	SubmitExpired(ctx context.Context, attemptID uuid.UUID) error
	OverdueAttempts(ctx context.Context, now time.Time) ([]model.AttemptDeadline, error)
}

// ────────────────────────────────────────────────────────────────────────────
// Redis-backed queue
// ────────────────────────────────────────────────────────────────────────────

// RedisDeadlineQueue keeps armed deadlines in a sorted set scored by unix
// milliseconds, so restarts of the worker lose nothing.
type RedisDeadlineQueue struct {
	rdb *redis.Client
}

// NewRedisDeadlineQueue creates a Redis-backed deadline queue.
func NewRedisDeadlineQueue(rdb *redis.Client) *RedisDeadlineQueue {
	return &RedisDeadlineQueue{rdb: rdb}
}

// Arm registers a deadline. NX keeps a pre-existing entry's score, so
// startup re-arming cannot shift deadlines.
func (q *RedisDeadlineQueue) Arm(ctx context.Context, attemptID uuid.UUID, deadline time.Time) error {
	return q.rdb.ZAddNX(ctx, config.WorkerKey.AttemptDeadlines, redis.Z{
		Score:  float64(deadline.UnixMilli()),
		Member: attemptID.String(),
	}).Err()
}

// Cancel removes an armed deadline. Removing an absent member is a no-op.
func (q *RedisDeadlineQueue) Cancel(ctx context.Context, attemptID uuid.UUID) error {
	return q.rdb.ZRem(ctx, config.WorkerKey.AttemptDeadlines, attemptID.String()).Err()
}

// Due returns every armed attempt whose deadline is at or before now.
// Entries stay queued until the worker confirms the submit and cancels them.
func (q *RedisDeadlineQueue) Due(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	members, err := q.rdb.ZRangeByScore(ctx, config.WorkerKey.AttemptDeadlines, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			// Garbage member, drop it so it cannot wedge the queue.
			_ = q.rdb.ZRem(ctx, config.WorkerKey.AttemptDeadlines, m).Err()
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var _ DeadlineQueue = (*RedisDeadlineQueue)(nil)

// ────────────────────────────────────────────────────────────────────────────
// Worker loop
// ────────────────────────────────────────────────────────────────────────────

// DeadlineWorker polls the queue for due deadlines and force-submits the
// attempts behind them. A slower Postgres sweep catches attempts whose
// deadline never reached the queue (arm failure, Redis flush).
type DeadlineWorker struct {
	queue         DeadlineQueue
	finisher      Finisher
	pollInterval  time.Duration
	sweepInterval time.Duration
	log           zerolog.Logger
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(
	queue DeadlineQueue,
	finisher Finisher,
	pollInterval, sweepInterval time.Duration,
	log zerolog.Logger,
) *DeadlineWorker {
	return &DeadlineWorker{
		queue:         queue,
		finisher:      finisher,
		pollInterval:  pollInterval,
		sweepInterval: sweepInterval,
		log:           log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start runs the poll and sweep loops until ctx is cancelled.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().
		Dur("poll_interval", w.pollInterval).
		Dur("sweep_interval", w.sweepInterval).
		Msg("DeadlineWorker started")

	poll := time.NewTicker(w.pollInterval)
	sweep := time.NewTicker(w.sweepInterval)
	defer poll.Stop()
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("DeadlineWorker stopped")
			return
		case <-poll.C:
			w.drainDue(ctx)
		case <-sweep.C:
			w.sweepOverdue(ctx)
		}
	}
}

// drainDue submits every attempt whose queued deadline has passed. The
// queue entry is only removed after the submit succeeds, so a crash between
// the two retries the submit, which is safe.
func (w *DeadlineWorker) drainDue(ctx context.Context) {
	due, err := w.queue.Due(ctx, time.Now())
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Failed to read due deadlines")
		}
		return
	}

	for _, attemptID := range due {
		if err := w.finisher.SubmitExpired(ctx, attemptID); err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", attemptID.String()).
				Msg("Forced submit failed, will retry next poll")
			continue
		}
		if err := w.queue.Cancel(ctx, attemptID); err != nil {
			w.log.Warn().Err(err).
				Str("attempt_id", attemptID.String()).
				Msg("Failed to dequeue submitted deadline")
		}
		w.log.Info().Str("attempt_id", attemptID.String()).Msg("Deadline submit delivered")
	}
}

// sweepOverdue is the Postgres safety net: any timed in-progress attempt
// past its deadline gets submitted even if the queue never saw it.
func (w *DeadlineWorker) sweepOverdue(ctx context.Context) {
	overdue, err := w.finisher.OverdueAttempts(ctx, time.Now())
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Overdue sweep query failed")
		}
		return
	}

	for _, d := range overdue {
		if err := w.finisher.SubmitExpired(ctx, d.AttemptID); err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", d.AttemptID.String()).
				Msg("Sweep submit failed")
			continue
		}
		_ = w.queue.Cancel(ctx, d.AttemptID)
		w.log.Warn().
			Str("attempt_id", d.AttemptID.String()).
			Time("deadline_at", d.DeadlineAt).
			Msg("Sweep recovered an overdue attempt")
	}
}
