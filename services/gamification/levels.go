package gamification

// Level curve: cheap early levels, then progressively steeper bands, then a
// constant slope past 50 so veterans keep a visible number going up.
type levelBand struct {
	UpTo      int   // highest level in this band
	PerLevel  int64 // xp needed per level inside the band
	Threshold int64 // cumulative xp at the band's first level - 1
}

var levelBands = []levelBand{
	{UpTo: 10, PerLevel: 100, Threshold: 0},
	{UpTo: 25, PerLevel: 250, Threshold: 900},
	{UpTo: 50, PerLevel: 600, Threshold: 4650},
}

const lateGamePerLevel = 1000
const lateGameThreshold = 19650 // cumulative xp at level 50

// XPForLevel returns the total XP required to reach a level. Level 1 is free.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	prev := 1
	for _, b := range levelBands {
		if level <= b.UpTo {
			return b.Threshold + int64(level-prev)*b.PerLevel
		}
		prev = b.UpTo
	}
	return lateGameThreshold + int64(level-50)*lateGamePerLevel
}

// LevelForXP inverts the curve.
func LevelForXP(totalXP int64) int {
	if totalXP < 0 {
		return 1
	}
	if totalXP >= lateGameThreshold {
		return 50 + int((totalXP-lateGameThreshold)/lateGamePerLevel)
	}
	level := 1
	for XPForLevel(level+1) <= totalXP {
		level++
	}
	return level
}

// LevelUpBonus is the flat follow-up grant when a user reaches a new level.
// It is recorded as a plain ledger row, never multiplied.
func LevelUpBonus(newLevel int) int64 {
	return int64(50 * newLevel)
}
