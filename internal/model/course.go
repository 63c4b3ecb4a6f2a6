package model

import (
	"time"

	"github.com/google/uuid"
)

// Course represents a course entity.
type Course struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AuthorID    uuid.UUID `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateCourseRequest is the payload for creating a new course.
type CreateCourseRequest struct {
	Title       string `json:"title" binding:"required,min=3,max=255"`
	Description string `json:"description" binding:"omitempty,max=5000"`
}

// UpdateCourseRequest is the payload for updating an existing course.
type UpdateCourseRequest struct {
	Title       string `json:"title" binding:"omitempty,min=3,max=255"`
	Description string `json:"description" binding:"omitempty,max=5000"`
}
