package quiz

import (
	"math"
	"testing"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/gamification"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
)

func history(results ...bool) []model.QuizHistory {
	rows := make([]model.QuizHistory, len(results))
	for i, r := range results {
		rows[i].Correct = r
	}
	return rows
}

func TestRateDifficultyTooLittleDataIsEasy(t *testing.T) {
	if got := rateDifficulty(nil); got != model.QuizEasy {
		t.Fatalf("no history = %s, want easy", got)
	}
	if got := rateDifficulty(history(true, true)); got != model.QuizEasy {
		t.Fatalf("two rows = %s, want easy", got)
	}
}

func TestRateDifficultyBands(t *testing.T) {
	cases := []struct {
		name string
		rows []model.QuizHistory
		want model.QuizDifficulty
	}{
		{"all correct", history(true, true, true, true), model.QuizHard},
		// 9/10 = 90%
		{"ninety percent", history(true, true, true, true, true, true, true, true, true, false), model.QuizHard},
		// 8/10 = 80%
		{"eighty percent", history(true, true, true, true, true, true, true, true, false, false), model.QuizMedium},
		// 7/10 = 70% sits exactly on the medium boundary
		{"seventy percent", history(true, true, true, true, true, true, true, false, false, false), model.QuizMedium},
		// 6/10 = 60%
		{"sixty percent", history(true, true, true, true, true, true, false, false, false, false), model.QuizEasy},
		{"all wrong", history(false, false, false), model.QuizEasy},
	}
	for _, tc := range cases {
		if got := rateDifficulty(tc.rows); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestPendingKeyShape(t *testing.T) {
	if got := pendingKey(7, 42); got != "quiz:pending:7:42" {
		t.Fatalf("pendingKey = %q", got)
	}
}

func TestMissingPendingIsInvalidInput(t *testing.T) {
	// A repeated or expired submit is a client error, not a missing resource.
	if kind := apperr.KindOf(errNoPending()); kind != apperr.KindInvalidInput {
		t.Fatalf("missing pending key kind = %v, want invalid input", kind)
	}
}

func TestAwardPlanCountsQuizForEveryGrade(t *testing.T) {
	base, _ := gamification.BaseXP(gamification.ActionQuizCompleted)

	cases := []struct {
		name     string
		correct  bool
		itemXP   int64
		taken    int
		wantMult float64
	}{
		{"correct full reward", true, base, 60, 1.0},
		{"correct with speed bonus", true, base, 20, speedBonus},
		{"wrong pays participation", false, base, 60, participationRate},
		{"reward scales with item", true, 2 * base, 60, 2.0},
	}
	for _, tc := range cases {
		action, mult := awardPlan(tc.correct, tc.itemXP, tc.taken)
		if action != gamification.ActionQuizCompleted {
			t.Errorf("%s: action = %s, want quiz_completed", tc.name, action)
		}
		if math.Abs(mult-tc.wantMult) > 1e-9 {
			t.Errorf("%s: mult = %v, want %v", tc.name, mult, tc.wantMult)
		}
	}
}
