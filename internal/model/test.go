package model

import (
	"time"

	"github.com/google/uuid"
)

// Test represents a graded test attached to a course.
// DurationMinutes == 0 means the test is untimed.
type Test struct {
	ID              uuid.UUID `json:"id"`
	CourseID        uuid.UUID `json:"course_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	OrderIndex      int       `json:"order_index"`
	PassThreshold   int       `json:"pass_threshold"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateTestRequest is the payload for creating a test.
type CreateTestRequest struct {
	Title           string `json:"title" binding:"required,min=3,max=255"`
	Description     string `json:"description" binding:"omitempty,max=5000"`
	OrderIndex      int    `json:"order_index" binding:"min=0"`
	PassThreshold   int    `json:"pass_threshold" binding:"min=0,max=100"`
	DurationMinutes int    `json:"duration_minutes" binding:"min=0,max=480"`
}

// UpdateTestRequest is the payload for updating a test.
// Changes never affect attempts that already snapshotted the test.
type UpdateTestRequest struct {
	Title           string `json:"title" binding:"omitempty,min=3,max=255"`
	Description     string `json:"description" binding:"omitempty,max=5000"`
	OrderIndex      *int   `json:"order_index" binding:"omitempty,min=0"`
	PassThreshold   *int   `json:"pass_threshold" binding:"omitempty,min=0,max=100"`
	DurationMinutes *int   `json:"duration_minutes" binding:"omitempty,min=0,max=480"`
}
