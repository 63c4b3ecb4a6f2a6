package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/repository"
)

// EnrollmentService handles course enrollment.
type EnrollmentService struct {
	enrollmentRepo *repository.EnrollmentRepository
	courseRepo     *repository.CourseRepository
}

// NewEnrollmentService creates a new EnrollmentService.
func NewEnrollmentService(
	enrollmentRepo *repository.EnrollmentRepository,
	courseRepo *repository.CourseRepository,
) *EnrollmentService {
	return &EnrollmentService{enrollmentRepo: enrollmentRepo, courseRepo: courseRepo}
}

// Enroll joins the caller to a course. Enrolling twice is a no-op that
// returns the existing enrollment.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, courseID uuid.UUID) (*model.Enrollment, error) {
	if _, err := s.courseRepo.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	enrollment := &model.Enrollment{CourseID: courseID, UserID: userID}
	if err := s.enrollmentRepo.Create(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	return enrollment, nil
}

// ListMine returns the caller's enrolled courses, most recent first.
func (s *EnrollmentService) ListMine(ctx context.Context, userID uuid.UUID) ([]model.EnrolledCourse, error) {
	return s.enrollmentRepo.ListByUser(ctx, userID)
}
