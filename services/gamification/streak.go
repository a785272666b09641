package gamification

import (
	"time"

	"github.com/djsoulspotti-ops/skajla/model"
)

// StreakMilestones pay a badge plus coins when the streak first reaches the
// threshold.
var StreakMilestones = map[int]int64{ // days -> coin bonus
	7:   50,
	30:  150,
	60:  300,
	100: 500,
	365: 2000,
}

// StreakChange describes what happened to the streak on an activity day.
type StreakChange struct {
	Changed     bool
	Reset       bool
	FreezesUsed int
	Milestone   int // 0 when none
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func yyyymm(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}

// applyStreak advances the streak state for the first activity of a day.
// Missed days must each be covered by a protection, otherwise the streak
// resets to 1. A same-day call is a no-op, which bounds streak changes to
// one per calendar day. The monthly freeze allowance refills here lazily.
func applyStreak(p *model.GamificationProfile, now time.Time) StreakChange {
	if p.FreezeResetMonth != yyyymm(now) {
		p.FreezeCardsLeft = 1
		p.FreezeResetMonth = yyyymm(now)
	}

	today := dateOf(now)
	var change StreakChange

	switch {
	case p.LastActivityDate == nil:
		p.CurrentStreak = 1
		change.Changed = true
	default:
		last := dateOf(*p.LastActivityDate)
		gap := int(today.Sub(last).Hours() / 24)
		switch {
		case gap <= 0:
			return change // already counted today
		case gap == 1:
			p.CurrentStreak++
			change.Changed = true
		default:
			covered := true
			for d := last.AddDate(0, 0, 1); d.Before(today); d = d.AddDate(0, 0, 1) {
				if weekendPassCovers(p, d) {
					continue
				}
				if p.FreezeCardsLeft > 0 {
					p.FreezeCardsLeft--
					change.FreezesUsed++
					continue
				}
				covered = false
				break
			}
			if covered {
				p.CurrentStreak++
			} else {
				p.CurrentStreak = 1
				change.Reset = true
			}
			change.Changed = true
		}
	}

	p.LastActivityDate = &today
	if p.CurrentStreak > p.MaxStreak {
		p.MaxStreak = p.CurrentStreak
	}
	if change.Changed && !change.Reset {
		if _, ok := StreakMilestones[p.CurrentStreak]; ok {
			change.Milestone = p.CurrentStreak
		}
	}
	return change
}

// weekendPassCovers reports whether an active weekend pass protects a missed
// Saturday or Sunday without spending a freeze card.
func weekendPassCovers(p *model.GamificationProfile, day time.Time) bool {
	if p.WeekendPassUntil == nil || day.After(*p.WeekendPassUntil) {
		return false
	}
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
