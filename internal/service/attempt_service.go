package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dvmnase/onlinecourses-backend/internal/config"
	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/repository"
	"github.com/dvmnase/onlinecourses-backend/internal/scoring"
)

// AttemptStore is the registry and persistence contract for attempts.
// *repository.AttemptRepository is the production implementation; tests use
// an in-memory one. TryActivate and Finalize are the two atomic
// check-and-set operations the lifecycle invariants rest on.
type AttemptStore interface {
	TryActivate(ctx context.Context, a *model.Attempt) (bool, error)
	Discard(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetActive(ctx context.Context, learnerID, testID uuid.UUID) (*model.Attempt, error)
	LatestTerminal(ctx context.Context, learnerID, testID uuid.UUID) (*model.Attempt, error)
	Finalize(ctx context.Context, id uuid.UUID, res model.GradingResult) (*model.Attempt, bool, error)
	UpsertAnswer(ctx context.Context, attemptID uuid.UUID, ans model.Answer) error
	ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error)
	ListPendingDeadlines(ctx context.Context) ([]model.AttemptDeadline, error)
	ListOverdue(ctx context.Context, now time.Time) ([]model.AttemptDeadline, error)
}

var _ AttemptStore = (*repository.AttemptRepository)(nil)

// Scheduler arms and disarms deadline callbacks for timed attempts.
// Both operations are idempotent and best-effort from the service's point
// of view: submit's own idempotence makes double or late delivery safe.
type Scheduler interface {
	Arm(ctx context.Context, attemptID uuid.UUID, deadline time.Time) error
	Cancel(ctx context.Context, attemptID uuid.UUID) error
}

type testGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
}

type questionLister interface {
	ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
}

type enrollmentChecker interface {
	Exists(ctx context.Context, courseID, userID uuid.UUID) (bool, error)
}

// AttemptService owns the attempt lifecycle: guarded creation, answer
// capture, submission (explicit or deadline-triggered) and idempotent
// result retrieval.
type AttemptService struct {
	store       AttemptStore
	tests       testGetter
	questions   questionLister
	enrollments enrollmentChecker
	scheduler   Scheduler
	rdb         *redis.Client // best-effort resume cache + event bus; may be nil in tests
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	store AttemptStore,
	tests testGetter,
	questions questionLister,
	enrollments enrollmentChecker,
	scheduler Scheduler,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		store:       store,
		tests:       tests,
		questions:   questions,
		enrollments: enrollments,
		scheduler:   scheduler,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// Begin starts a new attempt for (learnerID, testID).
//
// The test's questions, point values and pass threshold are snapshotted
// onto the attempt, so authoring edits after this moment never affect it.
// At most one attempt per pair may be in progress; the activation race is
// resolved atomically by the store. A pair that already holds a terminal
// attempt cannot begin again.
func (s *AttemptService) Begin(ctx context.Context, learnerID, testID uuid.UUID) (*model.Attempt, error) {
	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}

	enrolled, err := s.enrollments.Exists(ctx, test.CourseID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrEnrollmentRequired
	}

	questions, err := s.questions.ListByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	terminal, err := s.store.LatestTerminal(ctx, learnerID, testID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("lookup terminal attempt: %w", err)
	}
	if terminal != nil {
		return nil, &AlreadyCompletedError{Attempt: terminal}
	}

	attempt := &model.Attempt{
		TestID:        testID,
		LearnerID:     learnerID,
		Status:        model.AttemptStatusInProgress,
		PassThreshold: test.PassThreshold,
		Questions:     snapshotQuestions(questions),
	}
	for _, q := range attempt.Questions {
		attempt.MaxScore += q.Points
	}
	if test.DurationMinutes > 0 {
		deadline := time.Now().Add(time.Duration(test.DurationMinutes) * time.Minute)
		attempt.DeadlineAt = &deadline
	}

	activated, err := s.store.TryActivate(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("activate attempt: %w", err)
	}
	if !activated {
		// The slot is taken: either a prior attempt is still running, or
		// a submit finalized the pair between the terminal check above
		// and the activation. Resolve which by looking the pair up again.
		active, err := s.store.GetActive(ctx, learnerID, testID)
		if err == nil {
			answers, err := s.store.ListAnswers(ctx, active.ID)
			if err != nil {
				return nil, fmt.Errorf("list answers of active attempt: %w", err)
			}
			return nil, &AlreadyActiveError{Attempt: active, Answers: answers}
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("fetch active attempt after conflict: %w", err)
		}
		terminal, err := s.store.LatestTerminal(ctx, learnerID, testID)
		if err != nil {
			return nil, fmt.Errorf("lookup terminal attempt after conflict: %w", err)
		}
		return nil, &AlreadyCompletedError{Attempt: terminal}
	}

	// A submit can still slip in while the activation insert waits on the
	// in-progress conflict; its terminal row is visible now, so re-check
	// and withdraw the fresh attempt rather than grant a retake.
	terminal, err = s.store.LatestTerminal(ctx, learnerID, testID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("re-check terminal attempt: %w", err)
	}
	if terminal != nil {
		if err := s.store.Discard(ctx, attempt.ID); err != nil {
			return nil, fmt.Errorf("discard superseded attempt: %w", err)
		}
		return nil, &AlreadyCompletedError{Attempt: terminal}
	}

	if attempt.DeadlineAt != nil {
		// Arm failure is not fatal: the worker's Postgres sweep picks up
		// overdue attempts that never reached the queue.
		if err := s.scheduler.Arm(ctx, attempt.ID, *attempt.DeadlineAt); err != nil {
			s.log.Warn().Err(err).
				Str("attempt_id", attempt.ID.String()).
				Msg("Failed to arm deadline, sweep will cover it")
		}
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("test_id", testID.String()).
		Str("learner_id", learnerID.String()).
		Int("max_score", attempt.MaxScore).
		Msg("Attempt started")

	return attempt, nil
}

// RecordAnswer stores one answer on an in-progress attempt. The answer
// shape must match the question's type; the previously stored payload of
// the other shape is cleared. Last write wins per question.
//
// Answers arriving after the nominal deadline but before the scheduler's
// forced submit executes are accepted: scoring reads the answer set at the
// moment submit runs, not at the moment the deadline passed. This is a
// deliberate looseness, not a bug.
func (s *AttemptService) RecordAnswer(ctx context.Context, attemptID, learnerID uuid.UUID, req model.RecordAnswerRequest) (*model.Answer, error) {
	attempt, err := s.store.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.LearnerID != learnerID {
		return nil, ErrNotOwner
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, ErrAttemptNotMutable
	}

	question, ok := findSnapshot(attempt.Questions, req.QuestionID)
	if !ok {
		return nil, ErrUnknownQuestion
	}

	answer := model.Answer{QuestionID: req.QuestionID, UpdatedAt: time.Now()}
	switch {
	case question.Type.IsChoice():
		if req.Text != "" {
			return nil, ErrInvalidQuestionType
		}
		selected := req.SelectedOptionIDs
		if question.Type == model.QuestionTypeSingleChoice && len(selected) > 1 {
			// Single choice holds exactly one member, last write wins.
			selected = selected[len(selected)-1:]
		}
		answer.SelectedOptionIDs = selected

	case question.Type.IsText():
		if len(req.SelectedOptionIDs) > 0 {
			return nil, ErrInvalidQuestionType
		}
		answer.Text = req.Text

	default:
		return nil, ErrInvalidQuestionType
	}

	if err := s.store.UpsertAnswer(ctx, attemptID, answer); err != nil {
		return nil, fmt.Errorf("upsert answer: %w", err)
	}

	s.cacheAnswer(ctx, attemptID, answer)

	return &answer, nil
}

// Submit transitions the attempt to its terminal state and grades it.
//
// Effective at most once: a submit on an already-terminal attempt, and the
// loser of a concurrent explicit/deadline race, both return the existing
// terminal result unchanged. Grading is computed before the finalize
// check-and-set; the losing computation is discarded. If the terminal
// write fails, the attempt stays in progress so a retry is safe.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, trigger model.SubmitTrigger, callerID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.store.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if trigger == model.TriggerExplicit && attempt.LearnerID != callerID {
		return nil, ErrNotOwner
	}
	if attempt.Status == model.AttemptStatusSubmitted {
		return attempt, nil
	}

	answers, err := s.store.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	answerMap := make(map[uuid.UUID]model.Answer, len(answers))
	for _, a := range answers {
		answerMap[a.QuestionID] = a
	}

	graded := scoring.Grade(attempt.Questions, answerMap)
	result := model.GradingResult{
		TotalScore: graded.TotalScore,
		MaxScore:   graded.MaxScore,
		IsGraded:   graded.IsGraded,
		IsPassed:   graded.IsGraded && scoring.Passed(graded.TotalScore, graded.MaxScore, attempt.PassThreshold),
	}

	final, won, err := s.store.Finalize(ctx, attemptID, result)
	if err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}
	if !won {
		// A concurrent submit got there first; its result stands.
		final, err = s.store.GetByID(ctx, attemptID)
		if err != nil {
			return nil, fmt.Errorf("get terminal attempt: %w", err)
		}
		return final, nil
	}

	if err := s.scheduler.Cancel(ctx, attemptID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to cancel deadline entry")
	}
	s.clearAnswerCache(ctx, attemptID)
	s.publishGraded(ctx, final)

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Str("trigger", string(trigger)).
		Int("total_score", result.TotalScore).
		Int("max_score", result.MaxScore).
		Bool("is_graded", result.IsGraded).
		Bool("is_passed", result.IsPassed).
		Msg("Attempt submitted")

	return final, nil
}

// SubmitExpired is the deadline worker's entry point.
func (s *AttemptService) SubmitExpired(ctx context.Context, attemptID uuid.UUID) error {
	_, err := s.Submit(ctx, attemptID, model.TriggerDeadline, uuid.Nil)
	return err
}

// GetCompletedResult is the idempotent terminal lookup. ErrNoCompletedAttempt
// is a sentinel the caller uses to decide whether to offer Begin.
func (s *AttemptService) GetCompletedResult(ctx context.Context, learnerID, testID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.store.LatestTerminal(ctx, learnerID, testID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrNoCompletedAttempt
		}
		return nil, fmt.Errorf("lookup terminal attempt: %w", err)
	}
	return attempt, nil
}

// GetState returns the resume payload for an attempt: the attempt itself,
// recorded answers (Redis first, Postgres fallback with self-heal) and the
// remaining seconds for timed in-progress attempts.
func (s *AttemptService) GetState(ctx context.Context, attemptID, learnerID uuid.UUID) (*model.AttemptState, error) {
	attempt, err := s.store.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.LearnerID != learnerID {
		return nil, ErrNotOwner
	}

	answers, err := s.loadAnswers(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	state := &model.AttemptState{Attempt: attempt, Answers: answers}
	if attempt.Status == model.AttemptStatusInProgress && attempt.DeadlineAt != nil {
		remaining := int64(time.Until(*attempt.DeadlineAt).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		state.RemainingSeconds = &remaining
	}
	return state, nil
}

// RearmPendingDeadlines re-arms the scheduler for every timed in-progress
// attempt. Called once at startup so deadlines survive restarts.
func (s *AttemptService) RearmPendingDeadlines(ctx context.Context) error {
	pending, err := s.store.ListPendingDeadlines(ctx)
	if err != nil {
		return fmt.Errorf("list pending deadlines: %w", err)
	}
	for _, d := range pending {
		if err := s.scheduler.Arm(ctx, d.AttemptID, d.DeadlineAt); err != nil {
			return fmt.Errorf("re-arm attempt %s: %w", d.AttemptID, err)
		}
	}
	if len(pending) > 0 {
		s.log.Info().Int("count", len(pending)).Msg("Re-armed pending deadlines")
	}
	return nil
}

// OverdueAttempts lists timed in-progress attempts past their deadline.
func (s *AttemptService) OverdueAttempts(ctx context.Context, now time.Time) ([]model.AttemptDeadline, error) {
	return s.store.ListOverdue(ctx, now)
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

func snapshotQuestions(questions []model.Question) []model.QuestionSnapshot {
	snapshot := make([]model.QuestionSnapshot, 0, len(questions))
	for _, q := range questions {
		snapshot = append(snapshot, model.QuestionSnapshot{
			ID:               q.ID,
			Type:             q.Type,
			Points:           q.Points,
			CorrectOptionIDs: q.CorrectOptionIDs,
			CorrectText:      q.CorrectText,
		})
	}
	return snapshot
}

func findSnapshot(questions []model.QuestionSnapshot, id uuid.UUID) (model.QuestionSnapshot, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return model.QuestionSnapshot{}, false
}

// cacheAnswer mirrors the answer into the resume hash. Best-effort: the
// Postgres row is the source of truth.
func (s *AttemptService) cacheAnswer(ctx context.Context, attemptID uuid.UUID, ans model.Answer) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(ans)
	if err != nil {
		return
	}
	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	if err := s.rdb.HSet(ctx, key, ans.QuestionID.String(), raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Answer cache write failed")
	}
}

func (s *AttemptService) clearAnswerCache(ctx context.Context, attemptID uuid.UUID) {
	if s.rdb == nil {
		return
	}
	_ = s.rdb.Del(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Err()
}

// loadAnswers reads the resume hash, falling back to Postgres on a miss and
// self-healing the cache for the next read.
func (s *AttemptService) loadAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	if s.rdb != nil {
		key := config.CacheKey.AttemptAnswersKey(attemptID.String())
		cached, err := s.rdb.HGetAll(ctx, key).Result()
		if err == nil && len(cached) > 0 {
			answers := make([]model.Answer, 0, len(cached))
			healthy := true
			for _, raw := range cached {
				var a model.Answer
				if err := json.Unmarshal([]byte(raw), &a); err != nil {
					healthy = false
					break
				}
				answers = append(answers, a)
			}
			if healthy {
				return answers, nil
			}
		}
	}

	answers, err := s.store.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	// Self-heal so the next resume read is fast.
	for _, a := range answers {
		s.cacheAnswer(ctx, attemptID, a)
	}
	return answers, nil
}

// publishGraded notifies live stream subscribers that the attempt reached
// its terminal state.
func (s *AttemptService) publishGraded(ctx context.Context, attempt *model.Attempt) {
	if s.rdb == nil || attempt == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"event":   "graded",
		"attempt": attempt,
	})
	if err != nil {
		return
	}
	channel := config.CacheKey.AttemptEventsChannel(attempt.ID.String())
	if err := s.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Graded event publish failed")
	}
}
