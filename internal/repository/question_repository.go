package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

// QuestionRepository handles question data access. Options and the answer
// key are stored as JSONB documents on the question row.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	options, correctIDs, err := marshalKeyFields(q)
	if err != nil {
		return err
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (test_id, question_text, question_type, points, options, correct_option_ids, correct_text, order_index)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		q.TestID, q.Text, q.Type, q.Points, options, correctIDs, q.CorrectText, q.OrderIndex,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// Update replaces a question's definition.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	options, correctIDs, err := marshalKeyFields(q)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE questions
		 SET question_text = $2, question_type = $3, points = $4, options = $5,
		     correct_option_ids = $6, correct_text = $7, order_index = $8, updated_at = NOW()
		 WHERE id = $1`,
		q.ID, q.Text, q.Type, q.Points, options, correctIDs, q.CorrectText, q.OrderIndex)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// GetByID retrieves a question with its answer key.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, test_id, question_text, question_type, points, options, correct_option_ids, correct_text, order_index, created_at, updated_at
		 FROM questions WHERE id = $1`, id)
	return scanQuestion(row)
}

// Delete removes a question.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListByTest retrieves a test's questions in display order, answer keys
// included. Callers serving learners must strip keys via ForStudent.
func (r *QuestionRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, question_text, question_type, points, options, correct_option_ids, correct_text, order_index, created_at, updated_at
		 FROM questions
		 WHERE test_id = $1
		 ORDER BY order_index ASC, created_at ASC`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

func marshalKeyFields(q *model.Question) (options, correctIDs []byte, err error) {
	options, err = json.Marshal(q.Options)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal options: %w", err)
	}
	correctIDs, err = json.Marshal(q.CorrectOptionIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal answer key: %w", err)
	}
	return options, correctIDs, nil
}

func scanQuestion(row pgx.Row) (*model.Question, error) {
	q := &model.Question{}
	var options, correctIDs []byte

	err := row.Scan(&q.ID, &q.TestID, &q.Text, &q.Type, &q.Points, &options, &correctIDs, &q.CorrectText, &q.OrderIndex, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	if len(options) > 0 {
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	if len(correctIDs) > 0 {
		if err := json.Unmarshal(correctIDs, &q.CorrectOptionIDs); err != nil {
			return nil, fmt.Errorf("unmarshal answer key: %w", err)
		}
	}
	return q, nil
}
