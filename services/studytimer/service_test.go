package studytimer

import (
	"testing"

	"github.com/djsoulspotti-ops/skajla/model"
)

func TestValidKind(t *testing.T) {
	for _, k := range []model.StudySessionKind{model.StudyFocus, model.StudyPomodoro, model.StudyDeep, model.StudyReview} {
		if !validKind(k) {
			t.Errorf("validKind(%q) = false, want true", k)
		}
	}
	for _, k := range []model.StudySessionKind{"", "sprint", "FOCUS"} {
		if validKind(k) {
			t.Errorf("validKind(%q) = true, want false", k)
		}
	}
}
