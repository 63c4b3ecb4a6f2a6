package model

import (
	"time"

	"github.com/google/uuid"
)

// Content represents a single lesson/material inside a course.
type Content struct {
	ID         uuid.UUID `json:"id"`
	CourseID   uuid.UUID `json:"course_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateContentRequest is the payload for adding content to a course.
type CreateContentRequest struct {
	Title      string `json:"title" binding:"required,min=1,max=255"`
	Body       string `json:"body" binding:"required"`
	OrderIndex int    `json:"order_index" binding:"min=0"`
}

// UpdateContentRequest is the payload for updating existing content.
type UpdateContentRequest struct {
	Title      string `json:"title" binding:"omitempty,min=1,max=255"`
	Body       string `json:"body" binding:"omitempty"`
	OrderIndex *int   `json:"order_index" binding:"omitempty,min=0"`
}
