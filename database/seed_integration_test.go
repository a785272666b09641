package database

import (
	"os"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/djsoulspotti-ops/skajla/model"
)

// Needs a throwaway PostgreSQL database; skipped unless TEST_DATABASE_URL is
// set, same convention as the engine integration tests.
func seederTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(&model.Challenge{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func liveCount(t *testing.T, db *gorm.DB, kind model.ChallengeKind) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&model.Challenge{}).
		Where("kind = ? AND ends_at > ?", kind, time.Now()).
		Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", kind, err)
	}
	return n
}

func TestSeedChallengesRotatesPerKind(t *testing.T) {
	db := seederTestDB(t)
	if err := db.Where("1 = 1").Delete(&model.Challenge{}).Error; err != nil {
		t.Fatalf("clean challenges: %v", err)
	}
	s := NewSeeder(db)

	if err := s.SeedChallenges(); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if n := liveCount(t, db, model.ChallengeDaily); n != 1 {
		t.Fatalf("live daily after seed = %d, want 1", n)
	}
	if n := liveCount(t, db, model.ChallengeWeekly); n != 1 {
		t.Fatalf("live weekly after seed = %d, want 1", n)
	}

	// Idempotent while both windows are live.
	if err := s.SeedChallenges(); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	var total int64
	db.Model(&model.Challenge{}).Count(&total)
	if total != 2 {
		t.Fatalf("challenges after repeat seed = %d, want 2", total)
	}

	// Lapse the daily window; the rotation must open a new daily without
	// duplicating the still-live weekly.
	if err := db.Model(&model.Challenge{}).
		Where("kind = ?", model.ChallengeDaily).
		Update("ends_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("expire daily: %v", err)
	}
	if err := s.SeedChallenges(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if n := liveCount(t, db, model.ChallengeDaily); n != 1 {
		t.Fatalf("live daily after rotation = %d, want 1", n)
	}
	if n := liveCount(t, db, model.ChallengeWeekly); n != 1 {
		t.Fatalf("live weekly after rotation = %d, want 1", n)
	}
}
