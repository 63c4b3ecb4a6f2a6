package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

// TestRepository handles test data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// Create inserts a new test.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (course_id, title, description, order_index, pass_threshold, duration_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		t.CourseID, t.Title, t.Description, t.OrderIndex, t.PassThreshold, t.DurationMinutes,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID retrieves a test by ID.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, title, description, order_index, pass_threshold, duration_minutes, created_at, updated_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.CourseID, &t.Title, &t.Description, &t.OrderIndex, &t.PassThreshold, &t.DurationMinutes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// Update modifies a test definition. Attempts created before the update keep
// their own snapshot and are unaffected.
func (r *TestRepository) Update(ctx context.Context, t *model.Test) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tests
		 SET title = $2, description = $3, order_index = $4, pass_threshold = $5,
		     duration_minutes = $6, updated_at = NOW()
		 WHERE id = $1`,
		t.ID, t.Title, t.Description, t.OrderIndex, t.PassThreshold, t.DurationMinutes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Delete removes a test and its questions.
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListByCourse retrieves a course's tests in display order.
func (r *TestRepository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, course_id, title, description, order_index, pass_threshold, duration_minutes, created_at, updated_at
		 FROM tests
		 WHERE course_id = $1
		 ORDER BY order_index ASC, created_at ASC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.CourseID, &t.Title, &t.Description, &t.OrderIndex, &t.PassThreshold, &t.DurationMinutes, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}
