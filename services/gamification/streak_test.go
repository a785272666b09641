package gamification

import (
	"testing"
	"time"

	"github.com/djsoulspotti-ops/skajla/model"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("bad date literal %q: %v", value, err)
	}
	return parsed
}

func profileWithStreak(streak int, lastActive time.Time) *model.GamificationProfile {
	last := lastActive
	return &model.GamificationProfile{
		CurrentStreak:    streak,
		MaxStreak:        streak,
		LastActivityDate: &last,
		FreezeCardsLeft:  1,
		FreezeResetMonth: yyyymm(lastActive),
	}
}

func TestApplyStreakFirstActivity(t *testing.T) {
	p := &model.GamificationProfile{FreezeCardsLeft: 1}
	change := applyStreak(p, day(t, "2025-03-10"))

	if !change.Changed || change.Reset {
		t.Fatalf("unexpected change %+v", change)
	}
	if p.CurrentStreak != 1 || p.MaxStreak != 1 {
		t.Fatalf("streak = %d max = %d", p.CurrentStreak, p.MaxStreak)
	}
}

func TestApplyStreakSameDayNoOp(t *testing.T) {
	p := profileWithStreak(5, day(t, "2025-03-10"))
	change := applyStreak(p, day(t, "2025-03-10").Add(8*time.Hour))

	if change.Changed {
		t.Fatal("second activity of the day must not move the streak")
	}
	if p.CurrentStreak != 5 {
		t.Fatalf("streak = %d, want 5", p.CurrentStreak)
	}
}

func TestApplyStreakConsecutiveDay(t *testing.T) {
	p := profileWithStreak(6, day(t, "2025-03-10"))
	change := applyStreak(p, day(t, "2025-03-11"))

	if !change.Changed || change.Reset {
		t.Fatalf("unexpected change %+v", change)
	}
	if p.CurrentStreak != 7 {
		t.Fatalf("streak = %d, want 7", p.CurrentStreak)
	}
	if change.Milestone != 7 {
		t.Fatalf("milestone = %d, want 7", change.Milestone)
	}
}

func TestApplyStreakFreezeCoversOneMissedDay(t *testing.T) {
	p := profileWithStreak(10, day(t, "2025-03-10"))
	change := applyStreak(p, day(t, "2025-03-12")) // 11th missed

	if change.Reset {
		t.Fatal("freeze card should have covered the gap")
	}
	if change.FreezesUsed != 1 || p.FreezeCardsLeft != 0 {
		t.Fatalf("freezes used = %d, left = %d", change.FreezesUsed, p.FreezeCardsLeft)
	}
	if p.CurrentStreak != 11 {
		t.Fatalf("streak = %d, want 11", p.CurrentStreak)
	}
}

func TestApplyStreakResetWhenUncovered(t *testing.T) {
	p := profileWithStreak(20, day(t, "2025-03-10"))
	change := applyStreak(p, day(t, "2025-03-13")) // two missed days, one card

	if !change.Reset {
		t.Fatal("expected a reset")
	}
	if p.CurrentStreak != 1 {
		t.Fatalf("streak = %d, want 1", p.CurrentStreak)
	}
	if p.MaxStreak != 20 {
		t.Fatalf("max streak = %d, want 20", p.MaxStreak)
	}
	if change.Milestone != 0 {
		t.Fatal("a reset day must not pay a milestone")
	}
}

func TestApplyStreakWeekendPassCoversSaturdaySunday(t *testing.T) {
	// Active Friday 2025-03-07, silent all weekend, back Monday.
	p := profileWithStreak(15, day(t, "2025-03-07"))
	until := day(t, "2025-03-31")
	p.WeekendPassUntil = &until
	p.FreezeCardsLeft = 0

	change := applyStreak(p, day(t, "2025-03-10"))
	if change.Reset {
		t.Fatal("weekend pass should have covered Saturday and Sunday")
	}
	if change.FreezesUsed != 0 {
		t.Fatalf("freezes used = %d, want 0", change.FreezesUsed)
	}
	if p.CurrentStreak != 16 {
		t.Fatalf("streak = %d, want 16", p.CurrentStreak)
	}
}

func TestApplyStreakWeekendPassDoesNotCoverWeekdays(t *testing.T) {
	p := profileWithStreak(15, day(t, "2025-03-10")) // Monday
	until := day(t, "2025-03-31")
	p.WeekendPassUntil = &until
	p.FreezeCardsLeft = 0

	change := applyStreak(p, day(t, "2025-03-12")) // Tuesday missed
	if !change.Reset {
		t.Fatal("a missed weekday must not be covered by the weekend pass")
	}
}

func TestApplyStreakMonthlyFreezeRefill(t *testing.T) {
	p := profileWithStreak(3, day(t, "2025-02-27"))
	p.FreezeCardsLeft = 0

	// First activity in March refills the single monthly card, which then
	// covers the one missed day.
	change := applyStreak(p, day(t, "2025-03-01"))
	if change.Reset {
		t.Fatal("refilled freeze card should have covered the gap")
	}
	if change.FreezesUsed != 1 || p.FreezeCardsLeft != 0 {
		t.Fatalf("freezes used = %d, left = %d", change.FreezesUsed, p.FreezeCardsLeft)
	}
	if p.FreezeResetMonth != 202503 {
		t.Fatalf("freeze reset month = %d", p.FreezeResetMonth)
	}
}

func TestWeekendPassCovers(t *testing.T) {
	until := day(t, "2025-03-09")
	p := &model.GamificationProfile{WeekendPassUntil: &until}

	if !weekendPassCovers(p, day(t, "2025-03-08")) { // Saturday inside window
		t.Fatal("Saturday inside the window should be covered")
	}
	if weekendPassCovers(p, day(t, "2025-03-15")) { // Saturday after expiry
		t.Fatal("expired pass must not cover")
	}
	if weekendPassCovers(p, day(t, "2025-03-05")) { // Wednesday
		t.Fatal("weekdays are never covered")
	}
}
