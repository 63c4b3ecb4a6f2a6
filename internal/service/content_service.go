package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/repository"
)

// ContentService handles course lesson content.
type ContentService struct {
	contentRepo    *repository.ContentRepository
	courseRepo     *repository.CourseRepository
	enrollmentRepo *repository.EnrollmentRepository
}

// NewContentService creates a new ContentService.
func NewContentService(
	contentRepo *repository.ContentRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
) *ContentService {
	return &ContentService{
		contentRepo:    contentRepo,
		courseRepo:     courseRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

// Create adds a lesson to a course. Only the course author may add content.
func (s *ContentService) Create(ctx context.Context, authorID, courseID uuid.UUID, req model.CreateContentRequest) (*model.Content, error) {
	if err := s.requireAuthor(ctx, authorID, courseID); err != nil {
		return nil, err
	}
	content := &model.Content{
		CourseID:   courseID,
		Title:      req.Title,
		Body:       req.Body,
		OrderIndex: req.OrderIndex,
	}
	if err := s.contentRepo.Create(ctx, content); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}
	return content, nil
}

// Update modifies a lesson. Only the course author may update it.
func (s *ContentService) Update(ctx context.Context, authorID, contentID uuid.UUID, req model.UpdateContentRequest) (*model.Content, error) {
	content, err := s.contentRepo.GetByID(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuthor(ctx, authorID, content.CourseID); err != nil {
		return nil, err
	}
	if req.Title != "" {
		content.Title = req.Title
	}
	if req.Body != "" {
		content.Body = req.Body
	}
	if req.OrderIndex != nil {
		content.OrderIndex = *req.OrderIndex
	}
	if err := s.contentRepo.Update(ctx, content); err != nil {
		return nil, fmt.Errorf("update content: %w", err)
	}
	return content, nil
}

// Delete removes a lesson. Only the course author may delete it.
func (s *ContentService) Delete(ctx context.Context, authorID, contentID uuid.UUID) error {
	content, err := s.contentRepo.GetByID(ctx, contentID)
	if err != nil {
		return err
	}
	if err := s.requireAuthor(ctx, authorID, content.CourseID); err != nil {
		return err
	}
	return s.contentRepo.Delete(ctx, contentID)
}

// ListByCourse returns a course's lessons in order. Readable by the course
// author and enrolled learners only.
func (s *ContentService) ListByCourse(ctx context.Context, userID, courseID uuid.UUID) ([]model.Content, error) {
	if err := s.requireAccess(ctx, userID, courseID); err != nil {
		return nil, err
	}
	return s.contentRepo.ListByCourse(ctx, courseID)
}

func (s *ContentService) requireAuthor(ctx context.Context, userID, courseID uuid.UUID) error {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	if course.AuthorID != userID {
		return ErrNotCourseAuthor
	}
	return nil
}

func (s *ContentService) requireAccess(ctx context.Context, userID, courseID uuid.UUID) error {
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
