package gamification

import (
	"testing"
	"time"

	"github.com/djsoulspotti-ops/skajla/model"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("bad time literal %q: %v", value, err)
	}
	return parsed
}

func TestStreakMultiplierHighestTierOnly(t *testing.T) {
	cases := []struct {
		streak int
		want   float64
	}{
		{0, 1.0},
		{6, 1.0},
		{7, 1.2},
		{13, 1.2},
		{14, 1.4},
		{30, 1.6},
		{59, 1.6},
		{60, 1.8},
		{100, 2.0},
		{400, 2.0},
	}
	for _, tc := range cases {
		if got := streakMultiplier(tc.streak); got != tc.want {
			t.Errorf("streakMultiplier(%d) = %v, want %v", tc.streak, got, tc.want)
		}
	}
}

func TestDynamicMultiplierStacksContexts(t *testing.T) {
	// Saturday 23:00: weekend and night both apply on top of the streak tier.
	p := &model.GamificationProfile{CurrentStreak: 30, Level: 12}
	now := at(t, "2025-03-08 23:00") // Saturday

	got := DynamicMultiplier(p, now)
	want := 1.6 * 1.2 * 1.5
	if got != want {
		t.Fatalf("DynamicMultiplier = %v, want %v", got, want)
	}

	// base 5 with that multiplier rounds to 14: 5 * 2.88 = 14.4
	if xp := FinalXP(5, got, 1.0); xp != 14 {
		t.Fatalf("FinalXP(5, %v, 1) = %d, want 14", got, xp)
	}
}

func TestDynamicMultiplierVeteran(t *testing.T) {
	p := &model.GamificationProfile{Level: VeteranLevel}
	now := at(t, "2025-03-12 12:00") // Wednesday midday

	if got := DynamicMultiplier(p, now); got != VeteranMultiplier {
		t.Fatalf("DynamicMultiplier = %v, want %v", got, VeteranMultiplier)
	}
}

func TestDynamicMultiplierNightBoundaries(t *testing.T) {
	p := &model.GamificationProfile{}
	cases := []struct {
		clock string
		want  float64
	}{
		{"2025-03-12 07:59", NightMultiplier},
		{"2025-03-12 08:00", 1.0},
		{"2025-03-12 21:59", 1.0},
		{"2025-03-12 22:00", NightMultiplier},
	}
	for _, tc := range cases {
		if got := DynamicMultiplier(p, at(t, tc.clock)); got != tc.want {
			t.Errorf("DynamicMultiplier at %s = %v, want %v", tc.clock, got, tc.want)
		}
	}
}

func TestCoinsForFloorsAtOne(t *testing.T) {
	cases := []struct {
		xp   int64
		want int64
	}{
		{0, 1},
		{5, 1},
		{10, 1},
		{19, 1},
		{20, 2},
		{145, 14},
	}
	for _, tc := range cases {
		if got := CoinsFor(tc.xp); got != tc.want {
			t.Errorf("CoinsFor(%d) = %d, want %d", tc.xp, got, tc.want)
		}
	}
}

func TestBaseXPTable(t *testing.T) {
	if v, ok := BaseXP(ActionQuizCompleted); !ok || v != 50 {
		t.Fatalf("BaseXP(quiz_completed) = %d, %v", v, ok)
	}
	if _, ok := BaseXP(Action("made_up")); ok {
		t.Fatal("unknown action should not have a base value")
	}
}
