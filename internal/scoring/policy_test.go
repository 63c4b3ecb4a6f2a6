package scoring

import (
	"testing"

	"github.com/google/uuid"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

var (
	optA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	optB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	optC = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
)

func TestScoreQuestion_SingleChoice(t *testing.T) {
	q := model.QuestionSnapshot{
		ID:               uuid.New(),
		Type:             model.QuestionTypeSingleChoice,
		Points:           5,
		CorrectOptionIDs: []uuid.UUID{optA},
	}

	tests := []struct {
		name     string
		selected []uuid.UUID
		points   int
	}{
		{name: "correct", selected: []uuid.UUID{optA}, points: 5},
		{name: "wrong", selected: []uuid.UUID{optB}, points: 0},
		{name: "empty selection", selected: nil, points: 0},
		{name: "superset scores zero", selected: []uuid.UUID{optA, optB}, points: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ans := &model.Answer{QuestionID: q.ID, SelectedOptionIDs: tc.selected}
			got := ScoreQuestion(q, ans)
			if got.Points != tc.points {
				t.Errorf("points = %d, want %d", got.Points, tc.points)
			}
			if got.Pending {
				t.Error("single-choice must never be pending")
			}
		})
	}
}

func TestScoreQuestion_MultipleChoiceOrderIndependent(t *testing.T) {
	q := model.QuestionSnapshot{
		ID:               uuid.New(),
		Type:             model.QuestionTypeMultipleChoice,
		Points:           4,
		CorrectOptionIDs: []uuid.UUID{optA, optB},
	}

	tests := []struct {
		name     string
		selected []uuid.UUID
		points   int
	}{
		{name: "exact order AB", selected: []uuid.UUID{optA, optB}, points: 4},
		{name: "exact order BA", selected: []uuid.UUID{optB, optA}, points: 4},
		{name: "missing one", selected: []uuid.UUID{optA}, points: 0},
		{name: "extra one", selected: []uuid.UUID{optA, optB, optC}, points: 0},
		{name: "unanswered", selected: nil, points: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ans := &model.Answer{QuestionID: q.ID, SelectedOptionIDs: tc.selected}
			if got := ScoreQuestion(q, ans); got.Points != tc.points {
				t.Errorf("points = %d, want %d", got.Points, tc.points)
			}
		})
	}
}

func TestScoreQuestion_TextAnswer(t *testing.T) {
	q := model.QuestionSnapshot{
		ID:          uuid.New(),
		Type:        model.QuestionTypeTextAnswer,
		Points:      3,
		CorrectText: "Photosynthesis",
	}

	tests := []struct {
		name   string
		text   string
		points int
	}{
		{name: "exact", text: "Photosynthesis", points: 3},
		{name: "case insensitive", text: "photosynthesis", points: 3},
		{name: "trimmed", text: "  PHOTOSYNTHESIS \n", points: 3},
		{name: "wrong", text: "respiration", points: 0},
		{name: "empty", text: "", points: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ans := &model.Answer{QuestionID: q.ID, Text: tc.text}
			if got := ScoreQuestion(q, ans); got.Points != tc.points {
				t.Errorf("points = %d, want %d", got.Points, tc.points)
			}
		})
	}
}

func TestScoreQuestion_EssayAlwaysPending(t *testing.T) {
	q := model.QuestionSnapshot{ID: uuid.New(), Type: model.QuestionTypeEssay, Points: 10}

	answered := ScoreQuestion(q, &model.Answer{QuestionID: q.ID, Text: "long essay text"})
	if !answered.Pending || answered.Points != 0 {
		t.Errorf("answered essay = %+v, want pending with zero points", answered)
	}

	unanswered := ScoreQuestion(q, nil)
	if !unanswered.Pending || unanswered.Points != 0 {
		t.Errorf("unanswered essay = %+v, want pending with zero points", unanswered)
	}
}

func TestGrade_MaxScoreIndependentOfAnswers(t *testing.T) {
	questions := []model.QuestionSnapshot{
		{ID: uuid.New(), Type: model.QuestionTypeSingleChoice, Points: 5, CorrectOptionIDs: []uuid.UUID{optA}},
		{ID: uuid.New(), Type: model.QuestionTypeTextAnswer, Points: 3, CorrectText: "x"},
		{ID: uuid.New(), Type: model.QuestionTypeMultipleChoice, Points: 2, CorrectOptionIDs: []uuid.UUID{optB, optC}},
	}

	res := Grade(questions, nil)
	if res.MaxScore != 10 {
		t.Errorf("MaxScore = %d, want 10", res.MaxScore)
	}
	if res.TotalScore != 0 {
		t.Errorf("TotalScore = %d, want 0", res.TotalScore)
	}
	if !res.IsGraded {
		t.Error("no essay items — result must be fully graded")
	}
}

func TestGrade_EssayOnlyNeverGraded(t *testing.T) {
	q1 := model.QuestionSnapshot{ID: uuid.New(), Type: model.QuestionTypeEssay, Points: 5}
	q2 := model.QuestionSnapshot{ID: uuid.New(), Type: model.QuestionTypeEssay, Points: 5}

	answers := map[uuid.UUID]model.Answer{
		q1.ID: {QuestionID: q1.ID, Text: "answer one"},
		q2.ID: {QuestionID: q2.ID, Text: "answer two"},
	}

	res := Grade([]model.QuestionSnapshot{q1, q2}, answers)
	if res.IsGraded {
		t.Error("essay-only test must report IsGraded=false")
	}
	if res.TotalScore != 0 {
		t.Errorf("TotalScore = %d, want 0 provisional", res.TotalScore)
	}
	if res.MaxScore != 10 {
		t.Errorf("MaxScore = %d, want 10", res.MaxScore)
	}
}

func TestGrade_Deterministic(t *testing.T) {
	q := model.QuestionSnapshot{
		ID:               uuid.New(),
		Type:             model.QuestionTypeMultipleChoice,
		Points:           4,
		CorrectOptionIDs: []uuid.UUID{optA, optB},
	}
	answers := map[uuid.UUID]model.Answer{
		q.ID: {QuestionID: q.ID, SelectedOptionIDs: []uuid.UUID{optB, optA}},
	}

	first := Grade([]model.QuestionSnapshot{q}, answers)
	for i := 0; i < 100; i++ {
		if got := Grade([]model.QuestionSnapshot{q}, answers); got != first {
			t.Fatalf("run %d: result %+v differs from first %+v", i, got, first)
		}
	}
}

func TestPassed(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		max       int
		threshold int
		want      bool
	}{
		{name: "exactly at threshold", total: 70, max: 100, threshold: 70, want: true},
		{name: "below threshold", total: 69, max: 100, threshold: 70, want: false},
		{name: "half of ten at seventy", total: 5, max: 10, threshold: 70, want: false},
		{name: "full score", total: 10, max: 10, threshold: 100, want: true},
		{name: "zero threshold", total: 0, max: 10, threshold: 0, want: true},
		{name: "zero max never passes", total: 0, max: 0, threshold: 0, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Passed(tc.total, tc.max, tc.threshold); got != tc.want {
				t.Errorf("Passed(%d, %d, %d) = %v, want %v", tc.total, tc.max, tc.threshold, got, tc.want)
			}
		})
	}
}
