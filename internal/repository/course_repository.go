package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

// CourseRepository handles course data access.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, c *model.Course) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO courses (title, description, author_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		c.Title, c.Description, c.AuthorID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// GetByID retrieves a course by ID.
func (r *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	c := &model.Course{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, author_id, created_at, updated_at
		 FROM courses WHERE id = $1`, id,
	).Scan(&c.ID, &c.Title, &c.Description, &c.AuthorID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// Update modifies a course's title/description.
func (r *CourseRepository) Update(ctx context.Context, c *model.Course) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE courses SET title = $2, description = $3, updated_at = NOW() WHERE id = $1`,
		c.ID, c.Title, c.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Delete removes a course and, via cascading constraints, its contents,
// tests, questions, reviews and enrollments. Attempts reference their own
// snapshot and survive.
func (r *CourseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// List retrieves the paginated public catalog.
func (r *CourseRepository) List(ctx context.Context, page, perPage int) ([]model.Course, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM courses`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, author_id, created_at, updated_at
		 FROM courses
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.AuthorID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		courses = append(courses, c)
	}
	return courses, total, rows.Err()
}

// ListByAuthor retrieves every course owned by an instructor.
func (r *CourseRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]model.Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, author_id, created_at, updated_at
		 FROM courses
		 WHERE author_id = $1
		 ORDER BY created_at DESC`, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.AuthorID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}
