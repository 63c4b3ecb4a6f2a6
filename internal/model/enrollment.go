package model

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment links a learner to a course.
type Enrollment struct {
	ID        uuid.UUID `json:"id"`
	CourseID  uuid.UUID `json:"course_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// EnrolledCourse is a course as listed on the learner's "my learning" page.
type EnrolledCourse struct {
	Course
	EnrolledAt time.Time `json:"enrolled_at"`
}
