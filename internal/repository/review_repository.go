package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

// ReviewRepository handles course review data access.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository creates a new ReviewRepository.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Upsert creates or replaces the user's review of a course (one per pair).
func (r *ReviewRepository) Upsert(ctx context.Context, rev *model.Review) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO reviews (course_id, user_id, rating, comment)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (course_id, user_id) DO UPDATE
		 SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		rev.CourseID, rev.UserID, rev.Rating, rev.Comment,
	).Scan(&rev.ID, &rev.CreatedAt, &rev.UpdatedAt)
}

// Delete removes the user's review of a course.
func (r *ReviewRepository) Delete(ctx context.Context, courseID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM reviews WHERE course_id = $1 AND user_id = $2`, courseID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListByCourse retrieves a course's reviews, newest first, with author names.
func (r *ReviewRepository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT rv.id, rv.course_id, rv.user_id, u.name, rv.rating, rv.comment, rv.created_at, rv.updated_at
		 FROM reviews rv
		 JOIN users u ON rv.user_id = u.id
		 WHERE rv.course_id = $1
		 ORDER BY rv.created_at DESC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var rev model.Review
		if err := rows.Scan(&rev.ID, &rev.CourseID, &rev.UserID, &rev.UserName, &rev.Rating, &rev.Comment, &rev.CreatedAt, &rev.UpdatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, rev)
	}
	return reviews, rows.Err()
}

// GetByCourseAndUser retrieves one user's review of a course.
func (r *ReviewRepository) GetByCourseAndUser(ctx context.Context, courseID, userID uuid.UUID) (*model.Review, error) {
	rev := &model.Review{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, user_id, rating, comment, created_at, updated_at
		 FROM reviews WHERE course_id = $1 AND user_id = $2`, courseID, userID,
	).Scan(&rev.ID, &rev.CourseID, &rev.UserID, &rev.Rating, &rev.Comment, &rev.CreatedAt, &rev.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return rev, nil
}
