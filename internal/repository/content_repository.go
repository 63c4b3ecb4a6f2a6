package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

// ContentRepository handles course content data access.
type ContentRepository struct {
	pool *pgxpool.Pool
}

// NewContentRepository creates a new ContentRepository.
func NewContentRepository(pool *pgxpool.Pool) *ContentRepository {
	return &ContentRepository{pool: pool}
}

// Create inserts new content.
func (r *ContentRepository) Create(ctx context.Context, c *model.Content) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO contents (course_id, title, body, order_index)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		c.CourseID, c.Title, c.Body, c.OrderIndex,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// GetByID retrieves content by ID.
func (r *ContentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Content, error) {
	c := &model.Content{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, title, body, order_index, created_at, updated_at
		 FROM contents WHERE id = $1`, id,
	).Scan(&c.ID, &c.CourseID, &c.Title, &c.Body, &c.OrderIndex, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// Update modifies existing content.
func (r *ContentRepository) Update(ctx context.Context, c *model.Content) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE contents SET title = $2, body = $3, order_index = $4, updated_at = NOW()
		 WHERE id = $1`,
		c.ID, c.Title, c.Body, c.OrderIndex)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Delete removes content.
func (r *ContentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListByCourse retrieves a course's contents in display order.
func (r *ContentRepository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Content, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, course_id, title, body, order_index, created_at, updated_at
		 FROM contents
		 WHERE course_id = $1
		 ORDER BY order_index ASC, created_at ASC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contents []model.Content
	for rows.Next() {
		var c model.Content
		if err := rows.Scan(&c.ID, &c.CourseID, &c.Title, &c.Body, &c.OrderIndex, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}
