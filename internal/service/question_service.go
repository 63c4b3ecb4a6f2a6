package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/repository"
)

// ErrInvalidQuestionKey is returned when an upsert payload's options or
// answer key are inconsistent with the question type.
var ErrInvalidQuestionKey = errors.New("invalid question answer key")

// QuestionService handles question authoring and the learner-facing read
// model. Answer keys never leave the author-facing methods.
type QuestionService struct {
	questionRepo   *repository.QuestionRepository
	testRepo       *repository.TestRepository
	courseRepo     *repository.CourseRepository
	enrollmentRepo *repository.EnrollmentRepository
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(
	questionRepo *repository.QuestionRepository,
	testRepo *repository.TestRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
) *QuestionService {
	return &QuestionService{
		questionRepo:   questionRepo,
		testRepo:       testRepo,
		courseRepo:     courseRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

// Upsert creates the question when req.ID is absent, updates it otherwise.
// Option IDs are assigned server-side so the answer key references stable
// identities. Only the course author may call this.
func (s *QuestionService) Upsert(ctx context.Context, authorID, testID uuid.UUID, req model.UpsertQuestionRequest) (*model.Question, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuthor(ctx, authorID, test.CourseID); err != nil {
		return nil, err
	}

	question := &model.Question{
		TestID:      testID,
		Text:        req.Text,
		Type:        model.QuestionType(req.Type),
		Points:      req.Points,
		CorrectText: req.CorrectText,
		OrderIndex:  req.OrderIndex,
	}
	question.Options = assignOptionIDs(req.Options)
	question.CorrectOptionIDs = req.CorrectOptionIDs

	if err := validateKey(question); err != nil {
		return nil, err
	}

	if req.ID == nil {
		if err := s.questionRepo.Create(ctx, question); err != nil {
			return nil, fmt.Errorf("create question: %w", err)
		}
		return question, nil
	}

	existing, err := s.questionRepo.GetByID(ctx, *req.ID)
	if err != nil {
		return nil, err
	}
	if existing.TestID != testID {
		return nil, ErrUnknownQuestion
	}
	question.ID = *req.ID
	if err := s.questionRepo.Update(ctx, question); err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	return question, nil
}

// Delete removes a question. Only the course author may delete it.
func (s *QuestionService) Delete(ctx context.Context, authorID, questionID uuid.UUID) error {
	question, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return err
	}
	test, err := s.testRepo.GetByID(ctx, question.TestID)
	if err != nil {
		return err
	}
	if err := s.requireAuthor(ctx, authorID, test.CourseID); err != nil {
		return err
	}
	return s.questionRepo.Delete(ctx, questionID)
}

// ListForAuthor returns a test's questions with answer keys. Author only.
func (s *QuestionService) ListForAuthor(ctx context.Context, authorID, testID uuid.UUID) ([]model.Question, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuthor(ctx, authorID, test.CourseID); err != nil {
		return nil, err
	}
	return s.questionRepo.ListByTest(ctx, testID)
}

// ListForLearner returns a test's questions with the answer key stripped.
// The caller must be enrolled in the owning course.
func (s *QuestionService) ListForLearner(ctx context.Context, learnerID, testID uuid.UUID) ([]model.QuestionForStudent, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.enrollmentRepo.Exists(ctx, test.CourseID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrEnrollmentRequired
	}

	questions, err := s.questionRepo.ListByTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	stripped := make([]model.QuestionForStudent, 0, len(questions))
	for i := range questions {
		stripped = append(stripped, questions[i].ForStudent())
	}
	return stripped, nil
}

func (s *QuestionService) requireAuthor(ctx context.Context, userID, courseID uuid.UUID) error {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	if course.AuthorID != userID {
		return ErrNotCourseAuthor
	}
	return nil
}

// assignOptionIDs keeps client-supplied IDs and mints new ones for options
// that lack them.
func assignOptionIDs(dtos []model.OptionDTO) []model.Option {
	if len(dtos) == 0 {
		return nil
	}
	options := make([]model.Option, 0, len(dtos))
	for _, dto := range dtos {
		opt := model.Option{Text: dto.Text}
		if dto.ID != nil {
			opt.ID = *dto.ID
		} else {
			opt.ID = uuid.New()
		}
		options = append(options, opt)
	}
	return options
}

// validateKey enforces the per-type consistency rules:
// choice questions need at least two options and a key that only references
// them (exactly one member for single choice); text questions need a key
// and no options; essays carry no key at all.
func validateKey(q *model.Question) error {
	switch q.Type {
	case model.QuestionTypeSingleChoice, model.QuestionTypeMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: choice question needs at least two options", ErrInvalidQuestionKey)
		}
		if len(q.CorrectOptionIDs) == 0 {
			return fmt.Errorf("%w: choice question needs at least one correct option", ErrInvalidQuestionKey)
		}
		if q.Type == model.QuestionTypeSingleChoice && len(q.CorrectOptionIDs) != 1 {
			return fmt.Errorf("%w: single choice needs exactly one correct option", ErrInvalidQuestionKey)
		}
		known := make(map[uuid.UUID]struct{}, len(q.Options))
		for _, opt := range q.Options {
			if _, dup := known[opt.ID]; dup {
				return fmt.Errorf("%w: duplicate option id %s", ErrInvalidQuestionKey, opt.ID)
			}
			known[opt.ID] = struct{}{}
		}
		for _, id := range q.CorrectOptionIDs {
			if _, ok := known[id]; !ok {
				return fmt.Errorf("%w: correct option %s is not among the options", ErrInvalidQuestionKey, id)
			}
		}
		if q.CorrectText != "" {
			return fmt.Errorf("%w: choice question cannot carry a text key", ErrInvalidQuestionKey)
		}

	case model.QuestionTypeTextAnswer:
		if len(q.Options) > 0 || len(q.CorrectOptionIDs) > 0 {
			return fmt.Errorf("%w: text question cannot carry options", ErrInvalidQuestionKey)
		}
		if q.CorrectText == "" {
			return fmt.Errorf("%w: text question needs a correct answer", ErrInvalidQuestionKey)
		}

	case model.QuestionTypeEssay:
		if len(q.Options) > 0 || len(q.CorrectOptionIDs) > 0 || q.CorrectText != "" {
			return fmt.Errorf("%w: essay cannot carry an answer key", ErrInvalidQuestionKey)
		}

	default:
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidQuestionKey, q.Type)
	}
	return nil
}
