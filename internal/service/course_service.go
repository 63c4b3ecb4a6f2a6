package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/repository"
)

// ErrNotCourseAuthor is returned when a mutation targets a course the caller
// does not own.
var ErrNotCourseAuthor = errors.New("caller is not the course author")

// CourseService handles course catalog business logic.
type CourseService struct {
	courseRepo *repository.CourseRepository
}

// NewCourseService creates a new CourseService.
func NewCourseService(courseRepo *repository.CourseRepository) *CourseService {
	return &CourseService{courseRepo: courseRepo}
}

// Create creates a new course owned by authorID.
func (s *CourseService) Create(ctx context.Context, authorID uuid.UUID, req model.CreateCourseRequest) (*model.Course, error) {
	course := &model.Course{
		Title:       req.Title,
		Description: req.Description,
		AuthorID:    authorID,
	}
	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return course, nil
}

// GetByID retrieves a course by its ID.
func (s *CourseService) GetByID(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	return s.courseRepo.GetByID(ctx, id)
}

// List returns a page of the public catalog and the total course count.
func (s *CourseService) List(ctx context.Context, page, perPage int) ([]model.Course, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.courseRepo.List(ctx, page, perPage)
}

// ListByAuthor returns every course owned by authorID.
func (s *CourseService) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]model.Course, error) {
	return s.courseRepo.ListByAuthor(ctx, authorID)
}

// Update modifies a course. Only the author may update it.
func (s *CourseService) Update(ctx context.Context, authorID, courseID uuid.UUID, req model.UpdateCourseRequest) (*model.Course, error) {
	course, err := s.authorize(ctx, authorID, courseID)
	if err != nil {
		return nil, err
	}
	if req.Title != "" {
		course.Title = req.Title
	}
	if req.Description != "" {
		course.Description = req.Description
	}
	if err := s.courseRepo.Update(ctx, course); err != nil {
		return nil, fmt.Errorf("update course: %w", err)
	}
	return course, nil
}

// Delete removes a course. Only the author may delete it. Rows that hang off
// the course (contents, tests, enrollments, reviews) go with it via cascade.
func (s *CourseService) Delete(ctx context.Context, authorID, courseID uuid.UUID) error {
	if _, err := s.authorize(ctx, authorID, courseID); err != nil {
		return err
	}
	return s.courseRepo.Delete(ctx, courseID)
}

// authorize loads the course and verifies authorID owns it.
func (s *CourseService) authorize(ctx context.Context, authorID, courseID uuid.UUID) (*model.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.AuthorID != authorID {
		return nil, ErrNotCourseAuthor
	}
	return course, nil
}
