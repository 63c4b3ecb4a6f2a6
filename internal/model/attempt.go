package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// AttemptStatus enumerates attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
)

// SubmitTrigger identifies what caused an attempt submission.
type SubmitTrigger string

const (
	TriggerExplicit SubmitTrigger = "explicit"
	TriggerDeadline SubmitTrigger = "deadline"
)

// QuestionSnapshot is a question frozen at attempt creation. Edits to the
// live test after this point never affect the attempt. The snapshot carries
// the answer key, so it must never reach the learner-facing read model.
type QuestionSnapshot struct {
	ID               uuid.UUID    `json:"id"`
	Type             QuestionType `json:"type"`
	Points           int          `json:"points"`
	CorrectOptionIDs []uuid.UUID  `json:"correct_option_ids,omitempty"`
	CorrectText      string       `json:"correct_text,omitempty"`
}

// Attempt represents a learner's single run at a test.
//
// TotalScore is nil until the attempt is submitted. MaxScore is fixed at
// creation as the sum of snapshot point values. IsPassed is only meaningful
// while IsGraded is true; an attempt with pending essay items reports
// IsGraded=false and callers must not interpret IsPassed.
type Attempt struct {
	ID            uuid.UUID     `json:"id"`
	TestID        uuid.UUID     `json:"test_id"`
	LearnerID     uuid.UUID     `json:"learner_id"`
	Status        AttemptStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	DeadlineAt    *time.Time    `json:"deadline_at,omitempty"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	TotalScore    *int          `json:"total_score,omitempty"`
	MaxScore      int           `json:"max_score"`
	IsGraded      bool          `json:"is_graded"`
	IsPassed      bool          `json:"is_passed"`
	PassThreshold int           `json:"pass_threshold"`

	// Questions is the graded snapshot. Hidden from JSON because it
	// contains answer keys.
	Questions []QuestionSnapshot `json:"-"`
}

// Answer holds a learner's response to one snapshot question. Exactly one of
// SelectedOptionIDs / Text is populated, matching the question's type.
type Answer struct {
	QuestionID        uuid.UUID   `json:"question_id"`
	SelectedOptionIDs []uuid.UUID `json:"selected_option_ids,omitempty"`
	Text              string      `json:"text_answer,omitempty"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// AttemptDeadline pairs an attempt with its deadline, for scheduler re-arming.
type AttemptDeadline struct {
	AttemptID  uuid.UUID
	DeadlineAt time.Time
}

// AttemptState is the resume payload for an in-progress attempt.
type AttemptState struct {
	Attempt          *Attempt `json:"attempt"`
	Answers          []Answer `json:"answers"`
	RemainingSeconds *int64   `json:"remaining_seconds,omitempty"`
}

// GradingResult is the outcome of scoring a full attempt.
type GradingResult struct {
	TotalScore int
	MaxScore   int
	IsGraded   bool
	IsPassed   bool
}

// RecordAnswerRequest is the payload for saving one answer.
type RecordAnswerRequest struct {
	QuestionID        uuid.UUID   `json:"question_id" binding:"required"`
	SelectedOptionIDs []uuid.UUID `json:"selected_option_ids" binding:"omitempty"`
	Text              string      `json:"text_answer" binding:"omitempty,max=20000"`
}
