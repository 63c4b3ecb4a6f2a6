package service

import (
	"errors"
	"fmt"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

// Attempt lifecycle errors. All of these are expected control-flow outcomes
// surfaced to the caller for decision-making, not anomalies.
var (
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrNotOwner            = errors.New("attempt belongs to another learner")
	ErrAttemptNotMutable   = errors.New("attempt is no longer mutable")
	ErrInvalidQuestionType = errors.New("answer shape does not match question type")
	ErrUnknownQuestion     = errors.New("question does not belong to this attempt")
	ErrNoCompletedAttempt  = errors.New("no completed attempt for this test")
	ErrNoQuestions         = errors.New("test has no questions")
	ErrEnrollmentRequired  = errors.New("learner is not enrolled in the course")
)

// AlreadyActiveError is returned by Begin when the pair already holds an
// in-progress attempt. It carries the active attempt and its recorded
// answers so the caller can resume instead of starting over.
type AlreadyActiveError struct {
	Attempt *model.Attempt
	Answers []model.Answer
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("attempt %s is already active", e.Attempt.ID)
}

// AlreadyCompletedError is returned by Begin when the pair already holds a
// terminal attempt. It carries the existing result unchanged so the caller
// can render it without re-running the test.
type AlreadyCompletedError struct {
	Attempt *model.Attempt
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("test already completed by attempt %s", e.Attempt.ID)
}
