package gamification

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/utils/logging"
)

// These tests need a throwaway PostgreSQL database. They are skipped unless
// TEST_DATABASE_URL is set, e.g.
//
//	TEST_DATABASE_URL="host=localhost user=postgres dbname=skajla_test sslmode=disable" go test ./services/gamification/
func engineTestDB(t *testing.T) *gorm.DB {
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

	models := []interface{}{
		&model.School{}, &model.User{}, &model.GamificationProfile{},
		&model.XPEvent{}, &model.AchievementDefinition{}, &model.UserAchievement{},
		&model.BadgeDefinition{}, &model.UserBadge{},
		&model.Challenge{}, &model.UserChallengeProgress{},
		&model.UserNotification{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *model.User {
	t.Helper()
	suffix := time.Now().UnixNano()
	school := model.School{Name: fmt.Sprintf("Liceo Test %d", suffix), Code: fmt.Sprintf("TST%d", suffix)}
	if err := db.Create(&school).Error; err != nil {
		t.Fatalf("seed school: %v", err)
	}
	user := model.User{
		SchoolID:     school.ID,
		Username:     fmt.Sprintf("itest%d", suffix),
		Email:        fmt.Sprintf("itest%d@example.com", suffix),
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "Utente",
		Role:         model.RoleStudent,
		Active:       true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func TestAwardWritesLedgerAndProfile(t *testing.T) {
	db := engineTestDB(t)
	user := seedUser(t, db)
	e := NewEngine(db, logging.Nop(), nil)
	ctx := context.Background()

	out, err := e.Award(ctx, user.ID, ActionQuizCompleted, 1.0, "integration quiz", nil)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if out.XPEarned <= 0 || out.CoinsEarned <= 0 {
		t.Fatalf("outcome %+v", out)
	}

	p, err := e.Profile(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalXP < out.XPEarned {
		t.Fatalf("profile total %d < awarded %d", p.TotalXP, out.XPEarned)
	}
	if p.QuizzesTaken != 1 {
		t.Fatalf("quizzes taken = %d", p.QuizzesTaken)
	}

	var events int64
	db.Model(&model.XPEvent{}).Where("user_id = ?", user.ID).Count(&events)
	if events == 0 {
		t.Fatal("no ledger row written")
	}
}

func TestAwardDedupKeyIsIdempotent(t *testing.T) {
	db := engineTestDB(t)
	user := seedUser(t, db)
	e := NewEngine(db, logging.Nop(), nil)
	ctx := context.Background()

	key := fmt.Sprintf("itest:%d:once", user.ID)
	first, err := e.Award(ctx, user.ID, ActionLoginDaily, 1.0, "daily login", &key)
	if err != nil {
		t.Fatalf("first award: %v", err)
	}
	if first.Deduplicated {
		t.Fatal("first award must not be deduplicated")
	}

	second, err := e.Award(ctx, user.ID, ActionLoginDaily, 1.0, "daily login", &key)
	if err != nil {
		t.Fatalf("second award: %v", err)
	}
	if !second.Deduplicated {
		t.Fatal("replayed dedup key must be flagged")
	}
	if second.XPEarned != first.XPEarned {
		t.Fatalf("replay reports %d XP, want the original %d", second.XPEarned, first.XPEarned)
	}
	if second.CoinsEarned != first.CoinsEarned {
		t.Fatalf("replay reports %d coins, want the original %d", second.CoinsEarned, first.CoinsEarned)
	}

	p, _ := e.Profile(ctx, user.ID)
	if p.TotalXP != first.XPEarned {
		t.Fatalf("total %d, want %d from a single grant", p.TotalXP, first.XPEarned)
	}
}

func TestAwardLevelUpPaysBonusOnce(t *testing.T) {
	db := engineTestDB(t)
	user := seedUser(t, db)
	e := NewEngine(db, logging.Nop(), nil)
	ctx := context.Background()

	// Base 50 at context 2.0 = 100 XP, exactly the level 2 threshold.
	out, err := e.Award(ctx, user.ID, ActionQuizCompleted, 2.0, "big quiz", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !out.LevelUp || out.NewLevel < 2 {
		t.Fatalf("outcome %+v, want a level up", out)
	}

	var bonus int64
	db.Model(&model.XPEvent{}).
		Where("user_id = ? AND source = ?", user.ID, "level_up_bonus").
		Count(&bonus)
	if bonus == 0 {
		t.Fatal("level-up bonus ledger row missing")
	}
}
