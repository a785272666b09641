package database

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/djsoulspotti-ops/skajla/config"
	"github.com/djsoulspotti-ops/skajla/model"
)

// GORMStore owns the durable relational connection. The pool is bounded and
// can be recreated by the keep-alive job after repeated dead pings.
type GORMStore struct {
	mu sync.RWMutex
	db *gorm.DB
}

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM() (*GORMStore, error) {
	db, err := open()
	if err != nil {
		return nil, err
	}
	return &GORMStore{db: db}, nil
}

func open() (*gorm.DB, error) {
	getEnv, err := config.Get()
	if err != nil {
		return nil, err
	}

	// Build DSN (Data Source Name)
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		getEnv.DB_HOST,
		getEnv.DB_USER_NAME,
		getEnv.DB_PASSWORD,
		getEnv.DB_NAME,
		getEnv.DB_PORT,
		getEnv.DB_SSL_MODE,
	)

	// Configure GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)
	if getEnv.GO_ENV == "production" {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: false,
		PrepareStmt:            true,
		TranslateError:         true, // dedup paths match on gorm.ErrDuplicatedKey
	})
	if err != nil {
		log.Println("Unable to connect to PostgreSQL with GORM:", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Bounded pool; the event workers share it one connection at a time.
	sqlDB.SetMaxOpenConns(getEnv.DB_POOL_SIZE)
	sqlDB.SetMaxIdleConns(getEnv.DB_POOL_SIZE)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Successfully connected to PostgreSQL Database with GORM.")

	return db, nil
}

// migratedModels lists every durable entity, leaves first so FKs resolve.
func migratedModels() []interface{} {
	return []interface{}{
		&model.School{},
		&model.SchoolInvite{},
		&model.Class{},
		&model.User{},
		&model.TeacherClass{},
		&model.SessionBlacklist{},

		&model.Chat{},
		&model.ChatMembership{},
		&model.ChatInvite{},
		&model.Message{},
		&model.ReadReceipt{},

		&model.GamificationProfile{},
		&model.XPEvent{},
		&model.AchievementDefinition{},
		&model.BadgeDefinition{},
		&model.UserAchievement{},
		&model.UserBadge{},
		&model.Challenge{},
		&model.UserChallengeProgress{},

		&model.QuizItem{},
		&model.QuizHistory{},
		&model.SubjectProgress{},
		&model.StudySession{},

		&model.UserNotification{},
		&model.TelemetryEvent{},
		&model.CronJobLog{},
	}
}

// Init runs AutoMigrate model by model. Migrations are additive and
// idempotent; a single failing model is logged and skipped so it cannot
// abort the whole startup.
func (s *GORMStore) Init() error {
	log.Println("Running GORM AutoMigrate for all models...")

	var failed []string
	for _, m := range migratedModels() {
		if err := s.DB().AutoMigrate(m); err != nil {
			log.Printf("AutoMigrate failed for %T: %v", m, err)
			failed = append(failed, fmt.Sprintf("%T", m))
		}
	}

	if len(failed) > 0 {
		log.Printf("GORM AutoMigrate completed with %d failed models: %v", len(failed), failed)
		return nil
	}

	log.Println("GORM AutoMigrate completed successfully!")
	return nil
}

// DB returns the live GORM handle.
func (s *GORMStore) DB() *gorm.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Recreate tears down the pool and opens a fresh one. Called by the
// keep-alive job after three consecutive dead pings.
func (s *GORMStore) Recreate() error {
	fresh, err := open()
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.db
	s.db = fresh
	s.mu.Unlock()

	if sqlDB, err := old.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Println("Recreated PostgreSQL connection pool")
	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	log.Println("Closing GORM PostgreSQL connection...")
	sqlDB, err := s.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
