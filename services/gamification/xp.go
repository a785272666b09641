package gamification

import (
	"math"
	"time"

	"github.com/djsoulspotti-ops/skajla/model"
)

// Action tags every XP-awarding activity. The base table below is the single
// authority for how much each action is worth before multipliers.
type Action string

const (
	ActionLoginDaily       Action = "login_daily"
	ActionMessageSent      Action = "message_sent"
	ActionQuizCompleted    Action = "quiz_completed"
	ActionAIQuestion       Action = "ai_question"
	ActionAICorrectAnswer  Action = "ai_correct_answer"
	ActionGroupCreated     Action = "group_created"
	ActionPeerHelped       Action = "peer_helped"
	ActionReactionReceived Action = "reaction_received"
	ActionStudySession     Action = "study_session"
)

// Internal sources for ledger rows that skip the multiplier pipeline.
const (
	sourceLevelUpBonus       = "level_up_bonus"
	sourceBadgeUnlocked      = "badge_unlocked"
	sourceAchievementUnlock  = "achievement_unlocked"
	sourceStreakMilestone    = "streak_milestone"
	sourceChallengeCompleted = "challenge_completed"
)

var baseXP = map[Action]int64{
	ActionLoginDaily:       10,
	ActionMessageSent:      5,
	ActionQuizCompleted:    50,
	ActionAIQuestion:       15,
	ActionAICorrectAnswer:  25,
	ActionGroupCreated:     20,
	ActionPeerHelped:       15,
	ActionReactionReceived: 2,
	ActionStudySession:     1,
}

// BaseXP exposes the base value of an action so callers can express an
// absolute grant as a context multiplier.
func BaseXP(action Action) (int64, bool) {
	v, ok := baseXP[action]
	return v, ok
}

// counterFor maps an action to the profile counter it bumps. Actions without
// an entry only move XP.
func bumpCounter(p *model.GamificationProfile, action Action) string {
	switch action {
	case ActionMessageSent:
		p.MessagesSent++
		return "messages_sent"
	case ActionAIQuestion, ActionAICorrectAnswer:
		p.AIInteractions++
		return "ai_interactions"
	case ActionQuizCompleted:
		p.QuizzesTaken++
		return "quizzes_taken"
	case ActionPeerHelped:
		p.PeersHelped++
		return "peers_helped"
	case ActionGroupCreated:
		p.GroupsCreated++
		return "groups_created"
	case ActionReactionReceived:
		p.ReactionsReceived++
		return "reactions_received"
	}
	return ""
}

// Multiplier knobs. Streak tiers apply highest-only.
const (
	NightMultiplier   = 1.2
	WeekendMultiplier = 1.5
	VeteranMultiplier = 1.25
	VeteranLevel      = 30

	nightStartHour = 22
	nightEndHour   = 8
)

var streakTiers = []struct {
	Days int
	Mult float64
}{
	{100, 2.0},
	{60, 1.8},
	{30, 1.6},
	{14, 1.4},
	{7, 1.2},
}

func streakMultiplier(streak int) float64 {
	for _, t := range streakTiers {
		if streak >= t.Days {
			return t.Mult
		}
	}
	return 1.0
}

// DynamicMultiplier computes the product of every applicable contextual rule
// for a profile at a given local time.
func DynamicMultiplier(p *model.GamificationProfile, now time.Time) float64 {
	m := streakMultiplier(p.CurrentStreak)
	if h := now.Hour(); h < nightEndHour || h >= nightStartHour {
		m *= NightMultiplier
	}
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		m *= WeekendMultiplier
	}
	if p.Level >= VeteranLevel {
		m *= VeteranMultiplier
	}
	return m
}

// FinalXP rounds base × dynamic × context to the nearest integer.
func FinalXP(base int64, dynamic, context float64) int64 {
	return int64(math.Round(float64(base) * dynamic * context))
}

// CoinsFor derives the coin grant from an XP grant. Every award pays at
// least one coin.
func CoinsFor(xp int64) int64 {
	if c := xp / 10; c > 1 {
		return c
	}
	return 1
}
