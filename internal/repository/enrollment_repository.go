package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

// EnrollmentRepository handles enrollment data access.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Create enrolls a user in a course. Enrolling twice is a no-op that
// returns the existing enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, e *model.Enrollment) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO enrollments (course_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (course_id, user_id) DO NOTHING
		 RETURNING id, created_at`,
		e.CourseID, e.UserID,
	).Scan(&e.ID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.pool.QueryRow(ctx,
			`SELECT id, created_at FROM enrollments WHERE course_id = $1 AND user_id = $2`,
			e.CourseID, e.UserID,
		).Scan(&e.ID, &e.CreatedAt)
	}
	return err
}

// Exists reports whether the user is enrolled in the course.
func (r *EnrollmentRepository) Exists(ctx context.Context, courseID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM enrollments WHERE course_id = $1 AND user_id = $2)`,
		courseID, userID,
	).Scan(&exists)
	return exists, err
}

// ListByUser retrieves the user's enrolled courses, newest enrollment first.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.EnrolledCourse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.title, c.description, c.author_id, c.created_at, c.updated_at, e.created_at
		 FROM enrollments e
		 JOIN courses c ON e.course_id = c.id
		 WHERE e.user_id = $1
		 ORDER BY e.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.EnrolledCourse
	for rows.Next() {
		var ec model.EnrolledCourse
		if err := rows.Scan(&ec.ID, &ec.Title, &ec.Description, &ec.AuthorID, &ec.CreatedAt, &ec.UpdatedAt, &ec.EnrolledAt); err != nil {
			return nil, err
		}
		courses = append(courses, ec)
	}
	return courses, rows.Err()
}
