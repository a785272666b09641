package database

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/djsoulspotti-ops/skajla/model"
)

// Seeder installs tenant-independent reference data: achievement and badge
// definitions with their data-driven predicates.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("Starting database seeding...")

	if err := s.SeedAchievements(); err != nil {
		return fmt.Errorf("failed to seed achievements: %w", err)
	}
	if err := s.SeedBadges(); err != nil {
		return fmt.Errorf("failed to seed badges: %w", err)
	}
	if err := s.SeedChallenges(); err != nil {
		return fmt.Errorf("failed to seed challenges: %w", err)
	}

	log.Println("Database seeding completed")
	return nil
}

func rules(rs ...model.PredicateRule) datatypes.JSON {
	raw, _ := json.Marshal(rs)
	return datatypes.JSON(raw)
}

// SeedAchievements upserts the built-in achievement definitions. Existing
// codes are left untouched so unlock history stays consistent.
func (s *Seeder) SeedAchievements() error {
	defs := []model.AchievementDefinition{
		{Code: "first_message", Name: "Prima parola", Rarity: "common",
			Rules: rules(model.PredicateRule{Counter: "messages_sent", Op: "gte", Value: 1}), XPReward: 20},
		{Code: "chatterbox", Name: "Chiacchierone", Rarity: "rare",
			Rules: rules(model.PredicateRule{Counter: "messages_sent", Op: "gte", Value: 500}), XPReward: 150},
		{Code: "curious_mind", Name: "Mente curiosa", Rarity: "common",
			Rules: rules(model.PredicateRule{Counter: "ai_interactions", Op: "gte", Value: 10}), XPReward: 50},
		{Code: "quiz_rookie", Name: "Quiz rookie", Rarity: "common",
			Rules: rules(model.PredicateRule{Counter: "quizzes_taken", Op: "gte", Value: 5}), XPReward: 40},
		{Code: "quiz_master", Name: "Quiz master", Rarity: "epic",
			Rules: rules(model.PredicateRule{Counter: "quizzes_taken", Op: "gte", Value: 100}), XPReward: 300},
		{Code: "helping_hand", Name: "Mano tesa", Rarity: "rare",
			Rules: rules(model.PredicateRule{Counter: "peers_helped", Op: "gte", Value: 10}), XPReward: 120},
		{Code: "deep_worker", Name: "Studio profondo", Rarity: "rare",
			Rules: rules(model.PredicateRule{Counter: "study_minutes", Op: "gte", Value: 600}), XPReward: 150},
		{Code: "founder", Name: "Fondatore", Rarity: "common",
			Rules: rules(model.PredicateRule{Counter: "groups_created", Op: "gte", Value: 1}), XPReward: 30},
		{Code: "level_10", Name: "Doppia cifra", Rarity: "rare",
			Rules: rules(model.PredicateRule{Counter: "level", Op: "gte", Value: 10}), XPReward: 100},
		{Code: "level_30", Name: "Veterano", Rarity: "epic",
			Rules: rules(model.PredicateRule{Counter: "level", Op: "gte", Value: 30}), XPReward: 400},
	}

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&defs).Error
}

// SeedBadges upserts the built-in badge definitions, streak milestones
// included.
func (s *Seeder) SeedBadges() error {
	defs := []model.BadgeDefinition{
		{Code: "streak_7", Name: "Una settimana di fila", Rarity: "common",
			Rules: rules(model.PredicateRule{Counter: "current_streak", Op: "gte", Value: 7}), XPReward: 70},
		{Code: "streak_30", Name: "Un mese di fila", Rarity: "rare",
			Rules: rules(model.PredicateRule{Counter: "current_streak", Op: "gte", Value: 30}), XPReward: 300},
		{Code: "streak_60", Name: "Due mesi di fila", Rarity: "epic",
			Rules: rules(model.PredicateRule{Counter: "current_streak", Op: "gte", Value: 60}), XPReward: 600},
		{Code: "streak_100", Name: "Cento giorni", Rarity: "legendary",
			Rules: rules(model.PredicateRule{Counter: "current_streak", Op: "gte", Value: 100}), XPReward: 1000, CosmeticItem: "flame_avatar"},
		{Code: "streak_365", Name: "Un anno intero", Rarity: "legendary",
			Rules: rules(model.PredicateRule{Counter: "max_streak", Op: "gte", Value: 365}), XPReward: 3650, CosmeticItem: "gold_theme"},
		{Code: "night_owl", Name: "Gufo notturno", Rarity: "rare",
			Rules: rules(
				model.PredicateRule{Counter: "messages_sent", Op: "gte", Value: 50},
				model.PredicateRule{Counter: "ai_interactions", Op: "gte", Value: 20},
			), XPReward: 100},
	}

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&defs).Error
}

// SeedChallenges installs a daily and a weekly challenge for each cadence
// that has no live window. Challenges have no stable code, so the guard is a
// per-kind count on the live window rather than an upsert. Boot and the
// midnight rotation job both go through here.
func (s *Seeder) SeedChallenges() error {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := dayStart.AddDate(0, 0, -int((now.Weekday()+6)%7))

	var defs []model.Challenge

	liveDaily, err := s.liveChallenges(model.ChallengeDaily, now)
	if err != nil {
		return err
	}
	if liveDaily == 0 {
		defs = append(defs, model.Challenge{
			Kind: model.ChallengeDaily, Title: "Tre quiz oggi",
			Objectives: datatypes.JSONMap{"quizzes_taken": 3},
			RewardXP:   60, StartsAt: dayStart, EndsAt: dayStart.AddDate(0, 0, 1),
		})
	}

	liveWeekly, err := s.liveChallenges(model.ChallengeWeekly, now)
	if err != nil {
		return err
	}
	if liveWeekly == 0 {
		defs = append(defs, model.Challenge{
			Kind: model.ChallengeWeekly, Title: "Settimana sociale",
			Objectives: datatypes.JSONMap{"messages_sent": 20, "ai_interactions": 5},
			RewardXP:   250, StartsAt: weekStart, EndsAt: weekStart.AddDate(0, 0, 7),
		})
	}

	if len(defs) == 0 {
		return nil
	}
	return s.db.Create(&defs).Error
}

func (s *Seeder) liveChallenges(kind model.ChallengeKind, now time.Time) (int64, error) {
	var n int64
	err := s.db.Model(&model.Challenge{}).
		Where("kind = ? AND ends_at > ?", kind, now).
		Count(&n).Error
	return n, err
}
