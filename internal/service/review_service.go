package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/repository"
)

// ReviewService handles course ratings. One review per (course, user);
// re-submitting replaces the previous one.
type ReviewService struct {
	reviewRepo     *repository.ReviewRepository
	courseRepo     *repository.CourseRepository
	enrollmentRepo *repository.EnrollmentRepository
}

// NewReviewService creates a new ReviewService.
func NewReviewService(
	reviewRepo *repository.ReviewRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
) *ReviewService {
	return &ReviewService{
		reviewRepo:     reviewRepo,
		courseRepo:     courseRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

// Upsert creates or replaces the caller's review. Enrollment is required.
func (s *ReviewService) Upsert(ctx context.Context, userID, courseID uuid.UUID, req model.UpsertReviewRequest) (*model.Review, error) {
	if _, err := s.courseRepo.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	enrolled, err := s.enrollmentRepo.Exists(ctx, courseID, userID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrEnrollmentRequired
	}

	review := &model.Review{
		CourseID: courseID,
		UserID:   userID,
		Rating:   req.Rating,
		Comment:  req.Comment,
	}
	if err := s.reviewRepo.Upsert(ctx, review); err != nil {
		return nil, fmt.Errorf("upsert review: %w", err)
	}
	return review, nil
}

// Delete removes the caller's own review of a course.
func (s *ReviewService) Delete(ctx context.Context, userID, courseID uuid.UUID) error {
	return s.reviewRepo.Delete(ctx, courseID, userID)
}

// ListByCourse returns a course's reviews, newest first. Public.
func (s *ReviewService) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Review, error) {
	if _, err := s.courseRepo.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	return s.reviewRepo.ListByCourse(ctx, courseID)
}
