package gamification

import "testing"

func TestXPForLevelCurve(t *testing.T) {
	cases := []struct {
		level int
		want  int64
	}{
		{1, 0},
		{2, 100},
		{10, 900},
		{11, 1150},
		{25, 4650},
		{26, 5250},
		{50, 19650},
		{51, 20650},
		{60, 29650},
	}
	for _, tc := range cases {
		if got := XPForLevel(tc.level); got != tc.want {
			t.Errorf("XPForLevel(%d) = %d, want %d", tc.level, got, tc.want)
		}
	}
}

func TestLevelForXPInvertsCurve(t *testing.T) {
	cases := []struct {
		xp   int64
		want int
	}{
		{-5, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{899, 9},
		{900, 10},
		{1149, 10},
		{1150, 11},
		{4650, 25},
		{19649, 49},
		{19650, 50},
		{20650, 51},
	}
	for _, tc := range cases {
		if got := LevelForXP(tc.xp); got != tc.want {
			t.Errorf("LevelForXP(%d) = %d, want %d", tc.xp, got, tc.want)
		}
	}
}

func TestLevelRoundTrip(t *testing.T) {
	for level := 2; level <= 80; level++ {
		threshold := XPForLevel(level)
		if got := LevelForXP(threshold); got != level {
			t.Fatalf("LevelForXP(XPForLevel(%d)) = %d", level, got)
		}
		if got := LevelForXP(threshold - 1); got != level-1 {
			t.Fatalf("LevelForXP(XPForLevel(%d)-1) = %d, want %d", level, got, level-1)
		}
	}
}

func TestLevelUpBonus(t *testing.T) {
	if got := LevelUpBonus(7); got != 350 {
		t.Fatalf("LevelUpBonus(7) = %d, want 350", got)
	}
}
