package tenantguard

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
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
	"github.com/djsoulspotti-ops/skajla/utils/logging"
)

func guardTestDB(t *testing.T) *gorm.DB {
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
	if err := db.AutoMigrate(&model.School{}, &model.User{}, &model.Chat{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedTenant(t *testing.T, db *gorm.DB, tag string) (*model.School, *model.User) {
	t.Helper()
	suffix := fmt.Sprintf("%s%d", tag, time.Now().UnixNano())
	school := model.School{Name: "Scuola " + suffix, Code: suffix}
	if err := db.Create(&school).Error; err != nil {
		t.Fatalf("seed school: %v", err)
	}
	user := model.User{
		SchoolID:     school.ID,
		Username:     "u" + suffix,
		Email:        suffix + "@example.com",
		PasswordHash: "x",
		FirstName:    "A",
		LastName:     "B",
		Role:         model.RoleStudent,
		Active:       true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &school, &user
}

func TestTenantIsolationAcrossSchools(t *testing.T) {
	db := guardTestDB(t)
	g := New(db, logging.Nop())
	ctx := context.Background()

	schoolA, userA := seedTenant(t, db, "a")
	schoolB, userB := seedTenant(t, db, "b")

	chat := model.Chat{
		SchoolID:  schoolA.ID,
		Kind:      model.ChatKindInstant,
		Name:      "Classe di prova",
		CreatorID: userA.ID,
		Active:    true,
	}
	if err := db.Create(&chat).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}

	if err := g.RequireChatInTenant(ctx, chat.ID, schoolA.ID); err != nil {
		t.Fatalf("same-tenant access rejected: %v", err)
	}
	if err := g.RequireChatInTenant(ctx, chat.ID, schoolB.ID); apperr.KindOf(err) != apperr.KindTenantViolation {
		t.Fatalf("cross-tenant chat access: kind = %v, want tenant violation", apperr.KindOf(err))
	}

	if err := g.RequireUserInTenant(ctx, userA.ID, schoolA.ID); err != nil {
		t.Fatalf("same-tenant user rejected: %v", err)
	}
	if err := g.RequireUserInTenant(ctx, userB.ID, schoolA.ID); apperr.KindOf(err) != apperr.KindTenantViolation {
		t.Fatalf("cross-tenant user access: kind = %v, want tenant violation", apperr.KindOf(err))
	}
}
