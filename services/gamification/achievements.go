package gamification

import (
	"github.com/djsoulspotti-ops/skajla/model"
)

// counterValue resolves a predicate counter name against the profile.
// Unknown counters evaluate to zero, so a bad seed row can never unlock.
func counterValue(p *model.GamificationProfile, name string) int64 {
	switch name {
	case "total_xp":
		return p.TotalXP
	case "level":
		return int64(p.Level)
	case "coins":
		return p.Coins
	case "current_streak":
		return int64(p.CurrentStreak)
	case "max_streak":
		return int64(p.MaxStreak)
	case "messages_sent":
		return p.MessagesSent
	case "ai_interactions":
		return p.AIInteractions
	case "quizzes_taken":
		return p.QuizzesTaken
	case "peers_helped":
		return p.PeersHelped
	case "study_minutes":
		return p.StudyMinutes
	case "groups_created":
		return p.GroupsCreated
	case "reactions_received":
		return p.ReactionsReceived
	}
	return 0
}

// evalRules AND-s every rule of a definition against the profile.
func evalRules(p *model.GamificationProfile, rules []model.PredicateRule) bool {
	if len(rules) == 0 {
		return false
	}
	for _, r := range rules {
		v := counterValue(p, r.Counter)
		var ok bool
		switch r.Op {
		case "gte":
			ok = v >= r.Value
		case "gt":
			ok = v > r.Value
		case "eq":
			ok = v == r.Value
		case "lte":
			ok = v <= r.Value
		case "lt":
			ok = v < r.Value
		default:
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}
