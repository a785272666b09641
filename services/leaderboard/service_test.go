package leaderboard

import (
	"testing"
	"time"
)

func fixedService(t *testing.T, value string) *Service {
	t.Helper()
	now, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("bad time literal %q: %v", value, err)
	}
	s := NewService(nil, nil)
	s.now = func() time.Time { return now }
	return s
}

func TestPeriodStartDaily(t *testing.T) {
	s := fixedService(t, "2025-03-12 17:30")
	got, err := s.periodStart(PeriodDaily)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format("2006-01-02 15:04") != "2025-03-12 00:00" {
		t.Fatalf("daily start = %s", got)
	}
}

func TestPeriodStartWeeklyIsMondayBased(t *testing.T) {
	cases := []struct {
		now  string
		want string
	}{
		{"2025-03-12 10:00", "2025-03-10"}, // Wednesday -> Monday
		{"2025-03-10 00:30", "2025-03-10"}, // Monday -> same day
		{"2025-03-16 23:00", "2025-03-10"}, // Sunday still belongs to the week
	}
	for _, tc := range cases {
		s := fixedService(t, tc.now)
		got, err := s.periodStart(PeriodWeekly)
		if err != nil {
			t.Fatal(err)
		}
		if got.Format("2006-01-02") != tc.want {
			t.Errorf("weekly start at %s = %s, want %s", tc.now, got.Format("2006-01-02"), tc.want)
		}
	}
}

func TestPeriodStartSeasonalTrimesters(t *testing.T) {
	cases := []struct {
		now  string
		want string
	}{
		{"2025-10-15 12:00", "2025-09-01"}, // autumn trimester
		{"2025-02-10 12:00", "2025-01-01"}, // winter trimester
		{"2025-05-20 12:00", "2025-04-01"}, // spring trimester
		{"2025-09-01 00:00", "2025-09-01"},
	}
	for _, tc := range cases {
		s := fixedService(t, tc.now)
		got, err := s.periodStart(PeriodSeasonal)
		if err != nil {
			t.Fatal(err)
		}
		if got.Format("2006-01-02") != tc.want {
			t.Errorf("seasonal start at %s = %s, want %s", tc.now, got.Format("2006-01-02"), tc.want)
		}
	}
}

func TestPeriodStartLifetimeIsZero(t *testing.T) {
	s := fixedService(t, "2025-03-12 10:00")
	got, err := s.periodStart(PeriodLifetime)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsZero() {
		t.Fatalf("lifetime start = %s, want zero", got)
	}
}

func TestPeriodStartRejectsUnknown(t *testing.T) {
	s := fixedService(t, "2025-03-12 10:00")
	if _, err := s.periodStart(Period("fortnightly")); err == nil {
		t.Fatal("unknown period must be rejected")
	}
}
