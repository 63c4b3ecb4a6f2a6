package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

// ────────────────────────────────────────────────────────────────────────────
// In-memory fakes
// ────────────────────────────────────────────────────────────────────────────

// memoryAttemptStore mirrors the two database guarantees the service builds
// on: at most one in-progress attempt per (learner, test) and a terminal
// transition that exactly one caller wins.
type memoryAttemptStore struct {
	mu        sync.Mutex
	attempts  map[uuid.UUID]*model.Attempt
	answers   map[uuid.UUID]map[uuid.UUID]model.Answer
	finalized int

	// activateHook, when set, runs at the start of TryActivate outside the
	// lock. Tests use it to interleave a submit into the activation window.
	activateHook func()
}

func newMemoryAttemptStore() *memoryAttemptStore {
	return &memoryAttemptStore{
		attempts: make(map[uuid.UUID]*model.Attempt),
		answers:  make(map[uuid.UUID]map[uuid.UUID]model.Answer),
	}
}

func (s *memoryAttemptStore) TryActivate(_ context.Context, a *model.Attempt) (bool, error) {
	if s.activateHook != nil {
		s.activateHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attempts {
		if existing.LearnerID != a.LearnerID || existing.TestID != a.TestID {
			continue
		}
		// In-progress conflict or existing terminal attempt, matching the
		// partial unique index plus the NOT EXISTS terminal guard.
		if existing.Status == model.AttemptStatusInProgress ||
			existing.Status == model.AttemptStatusSubmitted {
			return false, nil
		}
	}
	a.ID = uuid.New()
	a.StartedAt = time.Now()
	cp := *a
	s.attempts[a.ID] = &cp
	return true, nil
}

func (s *memoryAttemptStore) Discard(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.attempts[id]; ok && a.Status == model.AttemptStatusInProgress {
		delete(s.attempts, id)
	}
	return nil
}

func (s *memoryAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memoryAttemptStore) GetActive(_ context.Context, learnerID, testID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.LearnerID == learnerID && a.TestID == testID && a.Status == model.AttemptStatusInProgress {
			cp := *a
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *memoryAttemptStore) LatestTerminal(_ context.Context, learnerID, testID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.Attempt
	for _, a := range s.attempts {
		if a.LearnerID == learnerID && a.TestID == testID && a.Status == model.AttemptStatusSubmitted {
			if latest == nil || a.FinishedAt.After(*latest.FinishedAt) {
				latest = a
			}
		}
	}
	if latest == nil {
		return nil, model.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *memoryAttemptStore) Finalize(_ context.Context, id uuid.UUID, res model.GradingResult) (*model.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return nil, false, nil
	}
	now := time.Now()
	score := res.TotalScore
	a.Status = model.AttemptStatusSubmitted
	a.FinishedAt = &now
	a.TotalScore = &score
	a.IsGraded = res.IsGraded
	a.IsPassed = res.IsPassed
	s.finalized++
	cp := *a
	return &cp, true, nil
}

func (s *memoryAttemptStore) UpsertAnswer(_ context.Context, attemptID uuid.UUID, ans model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answers[attemptID] == nil {
		s.answers[attemptID] = make(map[uuid.UUID]model.Answer)
	}
	s.answers[attemptID][ans.QuestionID] = ans
	return nil
}

func (s *memoryAttemptStore) ListAnswers(_ context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Answer, 0, len(s.answers[attemptID]))
	for _, a := range s.answers[attemptID] {
		out = append(out, a)
	}
	return out, nil
}

func (s *memoryAttemptStore) ListPendingDeadlines(_ context.Context) ([]model.AttemptDeadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AttemptDeadline
	for _, a := range s.attempts {
		if a.Status == model.AttemptStatusInProgress && a.DeadlineAt != nil {
			out = append(out, model.AttemptDeadline{AttemptID: a.ID, DeadlineAt: *a.DeadlineAt})
		}
	}
	return out, nil
}

func (s *memoryAttemptStore) ListOverdue(_ context.Context, now time.Time) ([]model.AttemptDeadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AttemptDeadline
	for _, a := range s.attempts {
		if a.Status == model.AttemptStatusInProgress && a.DeadlineAt != nil && a.DeadlineAt.Before(now) {
			out = append(out, model.AttemptDeadline{AttemptID: a.ID, DeadlineAt: *a.DeadlineAt})
		}
	}
	return out, nil
}

func (s *memoryAttemptStore) finalizeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

type fakeScheduler struct {
	mu       sync.Mutex
	armed    map[uuid.UUID]time.Time
	canceled map[uuid.UUID]bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{armed: make(map[uuid.UUID]time.Time), canceled: make(map[uuid.UUID]bool)}
}

func (f *fakeScheduler) Arm(_ context.Context, id uuid.UUID, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.armed[id]; !exists {
		f.armed[id] = deadline
	}
	return nil
}

func (f *fakeScheduler) Cancel(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled[id] = true
	return nil
}

type fakeTestGetter struct {
	mu    sync.Mutex
	tests map[uuid.UUID]model.Test
}

func (f *fakeTestGetter) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tests[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := t
	return &cp, nil
}

type fakeQuestionLister struct {
	mu        sync.Mutex
	questions map[uuid.UUID][]model.Question
}

func (f *fakeQuestionLister) ListByTest(_ context.Context, testID uuid.UUID) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Question(nil), f.questions[testID]...), nil
}

type fakeEnrollmentChecker struct {
	enrolled map[uuid.UUID]bool // keyed by learner ID
}

func (f *fakeEnrollmentChecker) Exists(_ context.Context, _, userID uuid.UUID) (bool, error) {
	return f.enrolled[userID], nil
}

// ────────────────────────────────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────────────────────────────────

type attemptFixture struct {
	svc       *AttemptService
	store     *memoryAttemptStore
	scheduler *fakeScheduler
	tests     *fakeTestGetter
	questions *fakeQuestionLister
	enrolls   *fakeEnrollmentChecker

	learnerID uuid.UUID
	testID    uuid.UUID
	q1, q2    model.Question
	opts      map[string]uuid.UUID
}

// newAttemptFixture builds a timed two-question test: q1 single choice worth
// 5 points, q2 multiple choice worth 5 points, pass threshold 70%.
func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()

	f := &attemptFixture{
		store:     newMemoryAttemptStore(),
		scheduler: newFakeScheduler(),
		learnerID: uuid.New(),
		testID:    uuid.New(),
		opts:      make(map[string]uuid.UUID),
	}
	for _, name := range []string{"a", "b", "c", "d"} {
		f.opts[name] = uuid.New()
	}

	f.q1 = model.Question{
		ID:     uuid.New(),
		TestID: f.testID,
		Type:   model.QuestionTypeSingleChoice,
		Points: 5,
		Options: []model.Option{
			{ID: f.opts["a"], Text: "A"},
			{ID: f.opts["b"], Text: "B"},
		},
		CorrectOptionIDs: []uuid.UUID{f.opts["a"]},
	}
	f.q2 = model.Question{
		ID:     uuid.New(),
		TestID: f.testID,
		Type:   model.QuestionTypeMultipleChoice,
		Points: 5,
		Options: []model.Option{
			{ID: f.opts["c"], Text: "C"},
			{ID: f.opts["d"], Text: "D"},
		},
		CorrectOptionIDs: []uuid.UUID{f.opts["c"], f.opts["d"]},
	}

	f.tests = &fakeTestGetter{tests: map[uuid.UUID]model.Test{
		f.testID: {
			ID:              f.testID,
			CourseID:        uuid.New(),
			PassThreshold:   70,
			DurationMinutes: 30,
		},
	}}
	f.questions = &fakeQuestionLister{questions: map[uuid.UUID][]model.Question{
		f.testID: {f.q1, f.q2},
	}}
	f.enrolls = &fakeEnrollmentChecker{enrolled: map[uuid.UUID]bool{f.learnerID: true}}

	f.svc = NewAttemptService(f.store, f.tests, f.questions, f.enrolls, f.scheduler, nil, zerolog.Nop())
	return f
}

func (f *attemptFixture) begin(t *testing.T) *model.Attempt {
	t.Helper()
	attempt, err := f.svc.Begin(context.Background(), f.learnerID, f.testID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return attempt
}

func (f *attemptFixture) answer(t *testing.T, attemptID, questionID uuid.UUID, selected ...uuid.UUID) {
	t.Helper()
	_, err := f.svc.RecordAnswer(context.Background(), attemptID, f.learnerID, model.RecordAnswerRequest{
		QuestionID:        questionID,
		SelectedOptionIDs: selected,
	})
	if err != nil {
		t.Fatalf("record answer: %v", err)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Begin
// ────────────────────────────────────────────────────────────────────────────

func TestBeginSnapshotsQuestions(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)

	if attempt.Status != model.AttemptStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", attempt.Status)
	}
	if attempt.MaxScore != 10 {
		t.Fatalf("max score = %d, want 10", attempt.MaxScore)
	}
	if attempt.PassThreshold != 70 {
		t.Fatalf("pass threshold = %d, want 70", attempt.PassThreshold)
	}
	if len(attempt.Questions) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(attempt.Questions))
	}
	if attempt.DeadlineAt == nil {
		t.Fatal("timed test produced no deadline")
	}
	if _, armed := f.scheduler.armed[attempt.ID]; !armed {
		t.Fatal("deadline was not armed")
	}
}

func TestBeginUntimedTestHasNoDeadline(t *testing.T) {
	f := newAttemptFixture(t)
	test := f.tests.tests[f.testID]
	test.DurationMinutes = 0
	f.tests.tests[f.testID] = test

	attempt := f.begin(t)
	if attempt.DeadlineAt != nil {
		t.Fatal("untimed test produced a deadline")
	}
	if len(f.scheduler.armed) != 0 {
		t.Fatal("untimed test armed the scheduler")
	}
}

func TestBeginRequiresEnrollment(t *testing.T) {
	f := newAttemptFixture(t)
	outsider := uuid.New()

	_, err := f.svc.Begin(context.Background(), outsider, f.testID)
	if !errors.Is(err, ErrEnrollmentRequired) {
		t.Fatalf("err = %v, want ErrEnrollmentRequired", err)
	}
}

func TestBeginRejectsEmptyTest(t *testing.T) {
	f := newAttemptFixture(t)
	f.questions.questions[f.testID] = nil

	_, err := f.svc.Begin(context.Background(), f.learnerID, f.testID)
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
}

func TestConcurrentBeginExactlyOneWinner(t *testing.T) {
	f := newAttemptFixture(t)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]error, callers)
	attempts := make([]*model.Attempt, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempts[i], results[i] = f.svc.Begin(context.Background(), f.learnerID, f.testID)
		}(i)
	}
	wg.Wait()

	var winnerID uuid.UUID
	wins, conflicts := 0, 0
	for i, err := range results {
		switch {
		case err == nil:
			wins++
			winnerID = attempts[i].ID
		default:
			var active *AlreadyActiveError
			if !errors.As(err, &active) {
				t.Fatalf("unexpected error: %v", err)
			}
			conflicts++
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
	if conflicts != callers-1 {
		t.Fatalf("conflicts = %d, want %d", conflicts, callers-1)
	}

	// Every loser must have been pointed at the winner's attempt.
	for _, err := range results {
		var active *AlreadyActiveError
		if errors.As(err, &active) && active.Attempt.ID != winnerID {
			t.Fatalf("conflict points at %s, want %s", active.Attempt.ID, winnerID)
		}
	}
}

func TestBeginResumesActiveAttemptWithAnswers(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)
	f.answer(t, attempt.ID, f.q1.ID, f.opts["a"])

	_, err := f.svc.Begin(context.Background(), f.learnerID, f.testID)
	var active *AlreadyActiveError
	if !errors.As(err, &active) {
		t.Fatalf("err = %v, want AlreadyActiveError", err)
	}
	if active.Attempt.ID != attempt.ID {
		t.Fatalf("resumed attempt %s, want %s", active.Attempt.ID, attempt.ID)
	}
	if len(active.Answers) != 1 || active.Answers[0].QuestionID != f.q1.ID {
		t.Fatalf("resumed answers = %+v, want the recorded one", active.Answers)
	}
}

func TestBeginAfterCompletionReturnsExistingResult(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)
	f.answer(t, attempt.ID, f.q1.ID, f.opts["a"])

	submitted, err := f.svc.Submit(context.Background(), attempt.ID, model.TriggerExplicit, f.learnerID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = f.svc.Begin(context.Background(), f.learnerID, f.testID)
	var completed *AlreadyCompletedError
	if !errors.As(err, &completed) {
		t.Fatalf("err = %v, want AlreadyCompletedError", err)
	}
	if completed.Attempt.ID != submitted.ID {
		t.Fatalf("returned attempt %s, want %s", completed.Attempt.ID, submitted.ID)
	}
	if *completed.Attempt.TotalScore != *submitted.TotalScore {
		t.Fatal("terminal result changed by the begin call")
	}
	if f.store.finalizeCount() != 1 {
		t.Fatalf("finalize count = %d, want 1", f.store.finalizeCount())
	}
}

// A submit landing between Begin's terminal pre-check and the activation
// must not open a retake: the registry's terminal guard refuses the insert
// and Begin resolves the conflict to the terminal result.
func TestBeginLosingSubmitRaceReturnsCompletedResult(t *testing.T) {
	f := newAttemptFixture(t)
	first := f.begin(t)
	f.answer(t, first.ID, f.q1.ID, f.opts["a"])

	f.store.activateHook = func() {
		f.store.activateHook = nil
		if _, err := f.svc.Submit(context.Background(), first.ID, model.TriggerExplicit, f.learnerID); err != nil {
			t.Errorf("interleaved submit: %v", err)
		}
	}

	_, err := f.svc.Begin(context.Background(), f.learnerID, f.testID)
	var completed *AlreadyCompletedError
	if !errors.As(err, &completed) {
		t.Fatalf("err = %v, want AlreadyCompletedError", err)
	}
	if completed.Attempt.ID != first.ID {
		t.Fatalf("returned attempt %s, want %s", completed.Attempt.ID, first.ID)
	}
	if f.store.finalizeCount() != 1 {
		t.Fatalf("finalize count = %d, want 1", f.store.finalizeCount())
	}
	if _, err := f.store.GetActive(context.Background(), f.learnerID, f.testID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("a fresh attempt survived the race: %v", err)
	}
}

// staleGuardStore activates even though a terminal sibling exists, the way
// a statement snapshot taken before a concurrent finalize committed would.
type staleGuardStore struct {
	*memoryAttemptStore
	submit func()
}

func (s *staleGuardStore) TryActivate(_ context.Context, a *model.Attempt) (bool, error) {
	s.submit()
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = uuid.New()
	a.StartedAt = time.Now()
	cp := *a
	s.attempts[a.ID] = &cp
	return true, nil
}

// Even when activation slips past the registry guard, Begin's post-activation
// re-check must withdraw the fresh attempt and surface the terminal result.
func TestBeginWithdrawsAttemptWhenSubmitOutracesActivation(t *testing.T) {
	f := newAttemptFixture(t)
	first := f.begin(t)
	f.answer(t, first.ID, f.q1.ID, f.opts["a"])

	stale := &staleGuardStore{memoryAttemptStore: f.store}
	svc := NewAttemptService(stale, f.tests, f.questions, f.enrolls, f.scheduler, nil, zerolog.Nop())
	stale.submit = func() {
		if _, err := svc.Submit(context.Background(), first.ID, model.TriggerExplicit, f.learnerID); err != nil {
			t.Errorf("interleaved submit: %v", err)
		}
	}

	_, err := svc.Begin(context.Background(), f.learnerID, f.testID)
	var completed *AlreadyCompletedError
	if !errors.As(err, &completed) {
		t.Fatalf("err = %v, want AlreadyCompletedError", err)
	}
	if completed.Attempt.ID != first.ID {
		t.Fatalf("returned attempt %s, want %s", completed.Attempt.ID, first.ID)
	}
	if _, err := f.store.GetActive(context.Background(), f.learnerID, f.testID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("the withdrawn attempt is still active: %v", err)
	}
	if len(f.scheduler.armed) != 1 {
		t.Fatalf("armed deadlines = %d, want only the first attempt's", len(f.scheduler.armed))
	}
}

// Edits to the live test after Begin must not leak into an attempt's grading.
func TestSnapshotIsImmuneToAuthoringEdits(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)
	f.answer(t, attempt.ID, f.q1.ID, f.opts["a"])

	// Flip q1's key and double its points after the attempt started.
	f.questions.mu.Lock()
	qs := f.questions.questions[f.testID]
	qs[0].CorrectOptionIDs = []uuid.UUID{f.opts["b"]}
	qs[0].Points = 10
	f.questions.mu.Unlock()

	final, err := f.svc.Submit(context.Background(), attempt.ID, model.TriggerExplicit, f.learnerID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if *final.TotalScore != 5 {
		t.Fatalf("total score = %d, want 5 from the original key", *final.TotalScore)
	}
	if final.MaxScore != 10 {
		t.Fatalf("max score = %d, want the snapshotted 10", final.MaxScore)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// RecordAnswer
// ────────────────────────────────────────────────────────────────────────────

func TestRecordAnswerValidation(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		caller  uuid.UUID
		attempt uuid.UUID
		req     model.RecordAnswerRequest
		want    error
	}{
		{
			name:    "unknown attempt",
			caller:  f.learnerID,
			attempt: uuid.New(),
			req:     model.RecordAnswerRequest{QuestionID: f.q1.ID},
			want:    ErrAttemptNotFound,
		},
		{
			name:    "not owner",
			caller:  uuid.New(),
			attempt: attempt.ID,
			req:     model.RecordAnswerRequest{QuestionID: f.q1.ID},
			want:    ErrNotOwner,
		},
		{
			name:    "question outside snapshot",
			caller:  f.learnerID,
			attempt: attempt.ID,
			req:     model.RecordAnswerRequest{QuestionID: uuid.New()},
			want:    ErrUnknownQuestion,
		},
		{
			name:    "text on a choice question",
			caller:  f.learnerID,
			attempt: attempt.ID,
			req:     model.RecordAnswerRequest{QuestionID: f.q1.ID, Text: "hello"},
			want:    ErrInvalidQuestionType,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RecordAnswer(ctx, tc.attempt, tc.caller, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRecordAnswerLastWriteWins(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)

	f.answer(t, attempt.ID, f.q1.ID, f.opts["b"])
	f.answer(t, attempt.ID, f.q1.ID, f.opts["a"])

	answers, err := f.store.ListAnswers(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("answer count = %d, want 1", len(answers))
	}
	if answers[0].SelectedOptionIDs[0] != f.opts["a"] {
		t.Fatal("earlier write survived, want last write to win")
	}
}

func TestRecordAnswerRejectedAfterSubmit(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)
	if _, err := f.svc.Submit(context.Background(), attempt.ID, model.TriggerExplicit, f.learnerID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err := f.svc.RecordAnswer(context.Background(), attempt.ID, f.learnerID, model.RecordAnswerRequest{
		QuestionID:        f.q1.ID,
		SelectedOptionIDs: []uuid.UUID{f.opts["a"]},
	})
	if !errors.Is(err, ErrAttemptNotMutable) {
		t.Fatalf("err = %v, want ErrAttemptNotMutable", err)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Submit
// ────────────────────────────────────────────────────────────────────────────

// Half the snapshot answered correctly: 5/10 against a 70% threshold must
// grade as failed, not pending.
func TestSubmitPartialScoreBelowThreshold(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)
	f.answer(t, attempt.ID, f.q1.ID, f.opts["a"])

	final, err := f.svc.Submit(context.Background(), attempt.ID, model.TriggerExplicit, f.learnerID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if final.Status != model.AttemptStatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", final.Status)
	}
	if *final.TotalScore != 5 || final.MaxScore != 10 {
		t.Fatalf("score = %d/%d, want 5/10", *final.TotalScore, final.MaxScore)
	}
	if !final.IsGraded {
		t.Fatal("fully auto-gradable attempt reported as pending")
	}
	if final.IsPassed {
		t.Fatal("5/10 at threshold 70 reported as passed")
	}
	if !f.scheduler.canceled[attempt.ID] {
		t.Fatal("deadline was not canceled on submit")
	}
}

func TestSubmitWithAllCorrectPasses(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)
	f.answer(t, attempt.ID, f.q1.ID, f.opts["a"])
	f.answer(t, attempt.ID, f.q2.ID, f.opts["d"], f.opts["c"]) // order must not matter

	final, err := f.svc.Submit(context.Background(), attempt.ID, model.TriggerExplicit, f.learnerID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if *final.TotalScore != 10 || !final.IsPassed {
		t.Fatalf("score = %d passed = %v, want 10 and passed", *final.TotalScore, final.IsPassed)
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)
	f.answer(t, attempt.ID, f.q1.ID, f.opts["a"])

	first, err := f.svc.Submit(context.Background(), attempt.ID, model.TriggerExplicit, f.learnerID)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := f.svc.Submit(context.Background(), attempt.ID, model.TriggerExplicit, f.learnerID)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if *first.TotalScore != *second.TotalScore || !first.FinishedAt.Equal(*second.FinishedAt) {
		t.Fatal("repeat submit changed the terminal result")
	}
	if f.store.finalizeCount() != 1 {
		t.Fatalf("finalize count = %d, want 1", f.store.finalizeCount())
	}
}

func TestSubmitExplicitDeadlineRaceSingleFinalize(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)
	f.answer(t, attempt.ID, f.q1.ID, f.opts["a"])

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < len(errs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = f.svc.Submit(context.Background(), attempt.ID, model.TriggerExplicit, f.learnerID)
			} else {
				errs[i] = f.svc.SubmitExpired(context.Background(), attempt.ID)
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if f.store.finalizeCount() != 1 {
		t.Fatalf("finalize count = %d, want exactly 1", f.store.finalizeCount())
	}

	final, err := f.store.GetByID(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("get final: %v", err)
	}
	if final.Status != model.AttemptStatusSubmitted || *final.TotalScore != 5 {
		t.Fatalf("final = %s %d, want SUBMITTED 5", final.Status, *final.TotalScore)
	}
}

func TestSubmitOwnerCheckOnlyForExplicit(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)

	if _, err := f.svc.Submit(context.Background(), attempt.ID, model.TriggerExplicit, uuid.New()); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("explicit by stranger: err = %v, want ErrNotOwner", err)
	}
	// Deadline trigger carries no caller.
	if err := f.svc.SubmitExpired(context.Background(), attempt.ID); err != nil {
		t.Fatalf("deadline submit: %v", err)
	}
}

func TestEssayLeavesAttemptUngraded(t *testing.T) {
	f := newAttemptFixture(t)
	essay := model.Question{
		ID:     uuid.New(),
		TestID: f.testID,
		Type:   model.QuestionTypeEssay,
		Points: 5,
	}
	f.questions.questions[f.testID] = append(f.questions.questions[f.testID], essay)

	attempt := f.begin(t)
	f.answer(t, attempt.ID, f.q1.ID, f.opts["a"])
	if _, err := f.svc.RecordAnswer(context.Background(), attempt.ID, f.learnerID, model.RecordAnswerRequest{
		QuestionID: essay.ID,
		Text:       "a long considered answer",
	}); err != nil {
		t.Fatalf("record essay: %v", err)
	}

	final, err := f.svc.Submit(context.Background(), attempt.ID, model.TriggerExplicit, f.learnerID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if final.IsGraded {
		t.Fatal("attempt with an essay reported as graded")
	}
	if final.IsPassed {
		t.Fatal("pending attempt must not report a pass")
	}
	if final.MaxScore != 15 {
		t.Fatalf("max score = %d, want 15 including the essay", final.MaxScore)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Reads and recovery
// ────────────────────────────────────────────────────────────────────────────

func TestGetCompletedResult(t *testing.T) {
	f := newAttemptFixture(t)

	if _, err := f.svc.GetCompletedResult(context.Background(), f.learnerID, f.testID); !errors.Is(err, ErrNoCompletedAttempt) {
		t.Fatalf("err = %v, want ErrNoCompletedAttempt", err)
	}

	attempt := f.begin(t)
	if _, err := f.svc.Submit(context.Background(), attempt.ID, model.TriggerExplicit, f.learnerID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := f.svc.GetCompletedResult(context.Background(), f.learnerID, f.testID)
	if err != nil {
		t.Fatalf("get completed: %v", err)
	}
	if got.ID != attempt.ID {
		t.Fatalf("got attempt %s, want %s", got.ID, attempt.ID)
	}
}

func TestGetStateReportsRemainingTime(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)
	f.answer(t, attempt.ID, f.q1.ID, f.opts["a"])

	state, err := f.svc.GetState(context.Background(), attempt.ID, f.learnerID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.RemainingSeconds == nil {
		t.Fatal("timed in-progress attempt reported no remaining time")
	}
	if *state.RemainingSeconds <= 0 || *state.RemainingSeconds > 30*60 {
		t.Fatalf("remaining = %d, want within (0, 1800]", *state.RemainingSeconds)
	}
	if len(state.Answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(state.Answers))
	}

	if _, err := f.svc.GetState(context.Background(), attempt.ID, uuid.New()); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("stranger read: err = %v, want ErrNotOwner", err)
	}
}

func TestRearmPendingDeadlines(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.begin(t)

	// Simulate a restart: the scheduler lost its state.
	f.scheduler.armed = make(map[uuid.UUID]time.Time)

	if err := f.svc.RearmPendingDeadlines(context.Background()); err != nil {
		t.Fatalf("rearm: %v", err)
	}
	if _, armed := f.scheduler.armed[attempt.ID]; !armed {
		t.Fatal("in-progress timed attempt was not re-armed")
	}
}
