package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTextAnswer     QuestionType = "TEXT_ANSWER"
	QuestionTypeEssay          QuestionType = "ESSAY"
)

// IsChoice reports whether the type carries selectable options.
func (t QuestionType) IsChoice() bool {
	return t == QuestionTypeSingleChoice || t == QuestionTypeMultipleChoice
}

// IsText reports whether the type carries a free-text answer.
func (t QuestionType) IsText() bool {
	return t == QuestionTypeTextAnswer || t == QuestionTypeEssay
}

// Option is a selectable answer for choice-type questions.
type Option struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

// Question represents a single test question.
// CorrectOptionIDs and CorrectText are the answer key; the learner-facing
// read model (QuestionForStudent) never carries them.
type Question struct {
	ID               uuid.UUID    `json:"id"`
	TestID           uuid.UUID    `json:"test_id"`
	Text             string       `json:"question_text"`
	Type             QuestionType `json:"question_type"`
	Points           int          `json:"points"`
	Options          []Option     `json:"options,omitempty"`
	CorrectOptionIDs []uuid.UUID  `json:"correct_option_ids,omitempty"`
	CorrectText      string       `json:"correct_answer,omitempty"`
	OrderIndex       int          `json:"order_index"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// QuestionForStudent is a question stripped of its answer key.
type QuestionForStudent struct {
	ID         uuid.UUID    `json:"id"`
	Text       string       `json:"question_text"`
	Type       QuestionType `json:"question_type"`
	Points     int          `json:"points"`
	Options    []Option     `json:"options,omitempty"`
	OrderIndex int          `json:"order_index"`
}

// ForStudent strips the answer key off a question.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:         q.ID,
		Text:       q.Text,
		Type:       q.Type,
		Points:     q.Points,
		Options:    q.Options,
		OrderIndex: q.OrderIndex,
	}
}

// UpsertQuestionRequest creates a question when ID is absent, updates otherwise.
type UpsertQuestionRequest struct {
	ID               *uuid.UUID  `json:"id" binding:"omitempty"`
	Text             string      `json:"question_text" binding:"required,min=1,max=2000"`
	Type             string      `json:"question_type" binding:"required,oneof=SINGLE_CHOICE MULTIPLE_CHOICE TEXT_ANSWER ESSAY"`
	Points           int         `json:"points" binding:"required,min=1"`
	Options          []OptionDTO `json:"options" binding:"omitempty,dive"`
	CorrectOptionIDs []uuid.UUID `json:"correct_option_ids" binding:"omitempty"`
	CorrectText      string      `json:"correct_answer" binding:"omitempty,max=2000"`
	OrderIndex       int         `json:"order_index" binding:"min=0"`
}

// OptionDTO is an option in an upsert payload. ID is assigned server-side
// when absent so the answer key can reference stable identities.
type OptionDTO struct {
	ID   *uuid.UUID `json:"id" binding:"omitempty"`
	Text string     `json:"text" binding:"required,min=1,max=1000"`
}
