package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/repository"
)

// TestService handles test authoring. Edits made here only affect attempts
// started afterwards; running attempts keep their snapshot.
type TestService struct {
	testRepo       *repository.TestRepository
	courseRepo     *repository.CourseRepository
	enrollmentRepo *repository.EnrollmentRepository
}

// NewTestService creates a new TestService.
func NewTestService(
	testRepo *repository.TestRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
) *TestService {
	return &TestService{
		testRepo:       testRepo,
		courseRepo:     courseRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

// Create attaches a new test to a course. Only the course author may create one.
func (s *TestService) Create(ctx context.Context, authorID, courseID uuid.UUID, req model.CreateTestRequest) (*model.Test, error) {
	if err := s.requireAuthor(ctx, authorID, courseID); err != nil {
		return nil, err
	}
	test := &model.Test{
		CourseID:        courseID,
		Title:           req.Title,
		Description:     req.Description,
		OrderIndex:      req.OrderIndex,
		PassThreshold:   req.PassThreshold,
		DurationMinutes: req.DurationMinutes,
	}
	if err := s.testRepo.Create(ctx, test); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	return test, nil
}

// GetByID retrieves a test. Readable by the course author and enrolled learners.
func (s *TestService) GetByID(ctx context.Context, userID, testID uuid.UUID) (*model.Test, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAccess(ctx, userID, test.CourseID); err != nil {
		return nil, err
	}
	return test, nil
}

// Update modifies a test. Only the course author may update it.
func (s *TestService) Update(ctx context.Context, authorID, testID uuid.UUID, req model.UpdateTestRequest) (*model.Test, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuthor(ctx, authorID, test.CourseID); err != nil {
		return nil, err
	}
	if req.Title != "" {
		test.Title = req.Title
	}
	if req.Description != "" {
		test.Description = req.Description
	}
	if req.OrderIndex != nil {
		test.OrderIndex = *req.OrderIndex
	}
	if req.PassThreshold != nil {
		test.PassThreshold = *req.PassThreshold
	}
	if req.DurationMinutes != nil {
		test.DurationMinutes = *req.DurationMinutes
	}
	if err := s.testRepo.Update(ctx, test); err != nil {
		return nil, fmt.Errorf("update test: %w", err)
	}
	return test, nil
}

// Delete removes a test. Only the course author may delete it.
func (s *TestService) Delete(ctx context.Context, authorID, testID uuid.UUID) error {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return err
	}
	if err := s.requireAuthor(ctx, authorID, test.CourseID); err != nil {
		return err
	}
	return s.testRepo.Delete(ctx, testID)
}

// ListByCourse returns a course's tests in order. Readable by the course
// author and enrolled learners.
func (s *TestService) ListByCourse(ctx context.Context, userID, courseID uuid.UUID) ([]model.Test, error) {
	if err := s.requireAccess(ctx, userID, courseID); err != nil {
		return nil, err
	}
	return s.testRepo.ListByCourse(ctx, courseID)
}

func (s *TestService) requireAuthor(ctx context.Context, userID, courseID uuid.UUID) error {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	if course.AuthorID != userID {
		return ErrNotCourseAuthor
	}
	return nil
}

func (s *TestService) requireAccess(ctx context.Context, userID, courseID uuid.UUID) error {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	if course.AuthorID == userID {
		return nil
	}
	enrolled, err := s.enrollmentRepo.Exists(ctx, courseID, userID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return ErrEnrollmentRequired
	}
	return nil
}
