package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

// AttemptRepository is the registry of attempts: it is the single source of
// truth for which (learner, test) pairs hold an active attempt and which
// hold a terminal result. The at-most-one-active invariant is enforced by a
// partial unique index on (learner_id, test_id) WHERE status='IN_PROGRESS',
// so concurrent activation races resolve inside PostgreSQL.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, test_id, learner_id, status, started_at, deadline_at, finished_at,
	total_score, max_score, is_graded, is_passed, pass_threshold, questions`

// TryActivate atomically registers a as the pair's active attempt.
// Returns false without mutating anything when another active attempt
// already holds the (learner, test) slot, or when the pair already has a
// terminal attempt — a submit that lands between the caller's terminal
// check and this insert must not open a retake. The caller distinguishes
// the two causes by looking the pair up again.
func (r *AttemptRepository) TryActivate(ctx context.Context, a *model.Attempt) (bool, error) {
	snapshot, err := json.Marshal(a.Questions)
	if err != nil {
		return false, fmt.Errorf("marshal question snapshot: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO attempts (test_id, learner_id, status, deadline_at, max_score, pass_threshold, questions)
		 SELECT $1, $2, $3, $4, $5, $6, $7
		 WHERE NOT EXISTS (
		     SELECT 1 FROM attempts
		     WHERE learner_id = $2 AND test_id = $1 AND status = 'SUBMITTED'
		 )
		 ON CONFLICT (learner_id, test_id) WHERE status = 'IN_PROGRESS' DO NOTHING
		 RETURNING id, started_at`,
		a.TestID, a.LearnerID, model.AttemptStatusInProgress, a.DeadlineAt, a.MaxScore, a.PassThreshold, snapshot,
	).Scan(&a.ID, &a.StartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil // Active conflict or existing terminal attempt.
		}
		return false, err
	}

	a.Status = model.AttemptStatusInProgress
	return true, nil
}

// Discard deletes a fresh attempt that activation accepted but the service
// rejected on its post-activation terminal re-check. Guarded to IN_PROGRESS
// so a discard can never erase a graded row.
func (r *AttemptRepository) Discard(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM attempts WHERE id = $1 AND status = 'IN_PROGRESS'`, id)
	return err
}

// GetByID retrieves one attempt with its question snapshot.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id)
	return scanAttempt(row)
}

// GetActive retrieves the pair's in-progress attempt, if any.
func (r *AttemptRepository) GetActive(ctx context.Context, learnerID, testID uuid.UUID) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE learner_id = $1 AND test_id = $2 AND status = 'IN_PROGRESS'`,
		learnerID, testID)
	return scanAttempt(row)
}

// LatestTerminal retrieves the pair's most recent submitted attempt, if any.
func (r *AttemptRepository) LatestTerminal(ctx context.Context, learnerID, testID uuid.UUID) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE learner_id = $1 AND test_id = $2 AND status = 'SUBMITTED'
		 ORDER BY finished_at DESC
		 LIMIT 1`,
		learnerID, testID)
	return scanAttempt(row)
}

// Finalize transitions the attempt to SUBMITTED with its grading result.
// The guarded UPDATE is the deactivation check-and-set: exactly one caller
// wins between an explicit submit and a deadline fire. The loser receives
// (nil, false, nil) and must read the winner's terminal row instead.
func (r *AttemptRepository) Finalize(ctx context.Context, id uuid.UUID, res model.GradingResult) (*model.Attempt, bool, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET status = 'SUBMITTED',
		     finished_at = NOW(),
		     total_score = $2,
		     is_graded = $3,
		     is_passed = $4
		 WHERE id = $1 AND status = 'IN_PROGRESS'
		 RETURNING `+attemptColumns,
		id, res.TotalScore, res.IsGraded, res.IsPassed)

	a, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return a, true, nil
}

// UpsertAnswer stores one answer, last write wins per question.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, attemptID uuid.UUID, ans model.Answer) error {
	selected, err := json.Marshal(ans.SelectedOptionIDs)
	if err != nil {
		return fmt.Errorf("marshal selection: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, selected_option_ids, answer_text)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET selected_option_ids = EXCLUDED.selected_option_ids,
		     answer_text = EXCLUDED.answer_text,
		     updated_at = NOW()`,
		attemptID, ans.QuestionID, selected, ans.Text)
	return err
}

// ListAnswers retrieves every stored answer for an attempt.
func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, selected_option_ids, answer_text, updated_at
		 FROM attempt_answers
		 WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var (
			a        model.Answer
			selected []byte
		)
		if err := rows.Scan(&a.QuestionID, &selected, &a.Text, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if len(selected) > 0 {
			if err := json.Unmarshal(selected, &a.SelectedOptionIDs); err != nil {
				return nil, fmt.Errorf("unmarshal selection: %w", err)
			}
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListPendingDeadlines returns every timed in-progress attempt. Used at
// startup to re-arm the deadline queue after a restart.
func (r *AttemptRepository) ListPendingDeadlines(ctx context.Context) ([]model.AttemptDeadline, error) {
	return r.listDeadlines(ctx,
		`SELECT id, deadline_at FROM attempts
		 WHERE status = 'IN_PROGRESS' AND deadline_at IS NOT NULL`)
}

// ListOverdue returns timed in-progress attempts whose deadline has passed.
// The deadline worker uses this as a safety net for attempts that never
// made it into the Redis queue.
func (r *AttemptRepository) ListOverdue(ctx context.Context, now time.Time) ([]model.AttemptDeadline, error) {
	return r.listDeadlines(ctx,
		`SELECT id, deadline_at FROM attempts
		 WHERE status = 'IN_PROGRESS' AND deadline_at IS NOT NULL AND deadline_at <= $1`, now)
}

func (r *AttemptRepository) listDeadlines(ctx context.Context, query string, args ...any) ([]model.AttemptDeadline, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AttemptDeadline
	for rows.Next() {
		var d model.AttemptDeadline
		if err := rows.Scan(&d.AttemptID, &d.DeadlineAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	var snapshot []byte

	err := row.Scan(
		&a.ID, &a.TestID, &a.LearnerID, &a.Status, &a.StartedAt, &a.DeadlineAt, &a.FinishedAt,
		&a.TotalScore, &a.MaxScore, &a.IsGraded, &a.IsPassed, &a.PassThreshold, &snapshot,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &a.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal question snapshot: %w", err)
		}
	}
	return a, nil
}
