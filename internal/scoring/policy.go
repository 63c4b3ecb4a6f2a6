// Package scoring implements the pure scoring policy for attempt grading.
// Scoring is deterministic: identical (question, answer) pairs always
// produce identical outcomes, so a graded attempt never needs re-scoring.
package scoring

import (
	"strings"

	"github.com/google/uuid"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
)

// Outcome is the result of scoring a single question.
type Outcome struct {
	Points  int
	Pending bool // true for essay items awaiting manual grading
}

// Result is the aggregate over all questions of an attempt.
type Result struct {
	TotalScore int
	MaxScore   int
	// IsGraded is false while any item is pending manual grading.
	IsGraded bool
}

// ScoreQuestion scores one answer against its snapshot question.
// A nil answer counts as unanswered: zero points, and still pending for
// essay questions (only an explicit manual grade resolves an essay).
func ScoreQuestion(q model.QuestionSnapshot, ans *model.Answer) Outcome {
	switch q.Type {
	case model.QuestionTypeSingleChoice, model.QuestionTypeMultipleChoice:
		if ans == nil {
			return Outcome{}
		}
		// Full points iff the selected set exactly equals the key set,
		// order-independent. No partial credit.
		if equalIDSet(ans.SelectedOptionIDs, q.CorrectOptionIDs) {
			return Outcome{Points: q.Points}
		}
		return Outcome{}

	case model.QuestionTypeTextAnswer:
		if ans == nil {
			return Outcome{}
		}
		if textMatches(ans.Text, q.CorrectText) {
			return Outcome{Points: q.Points}
		}
		return Outcome{}

	case model.QuestionTypeEssay:
		return Outcome{Pending: true}

	default:
		return Outcome{}
	}
}

// Grade scores every snapshot question against the answer map. Missing
// answers are treated as empty. MaxScore is always the sum of all snapshot
// point values, regardless of how many questions were answered.
func Grade(questions []model.QuestionSnapshot, answers map[uuid.UUID]model.Answer) Result {
	res := Result{IsGraded: true}

	for _, q := range questions {
		res.MaxScore += q.Points

		var ans *model.Answer
		if a, ok := answers[q.ID]; ok {
			ans = &a
		}

		out := ScoreQuestion(q, ans)
		res.TotalScore += out.Points
		if out.Pending {
			res.IsGraded = false
		}
	}

	return res
}

// Passed reports whether totalScore/maxScore meets the percentage threshold.
// Only meaningful when the result is fully graded.
func Passed(totalScore, maxScore, threshold int) bool {
	if maxScore <= 0 {
		return false
	}
	return totalScore*100 >= threshold*maxScore
}

func equalIDSet(a, b []uuid.UUID) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	if len(set) != len(dedup(b)) {
		return false
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

func dedup(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// textMatches compares free-text answers case-insensitively after trimming.
func textMatches(got, want string) bool {
	got = strings.TrimSpace(got)
	want = strings.TrimSpace(want)
	if got == "" || want == "" {
		return false
	}
	return strings.EqualFold(got, want)
}
