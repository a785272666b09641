// migrate_gorm.go - Run this file to test GORM migrations
// Usage: go run migrate_gorm.go

//go:build ignore

package main

import (
	"log"

	"github.com/djsoulspotti-ops/skajla/config"
	"github.com/djsoulspotti-ops/skajla/database"
)

func main() {
	log.Println("=== GORM Migration Test ===")

	// Load environment variables
	if err := config.LoadENV(); err != nil {
		log.Fatal("Failed to load environment variables:", err)
	}

	// Initialize GORM connection
	store, err := database.StartGORM()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer store.Close()

	// Run migrations
	if err := store.Init(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Health check
	if err := store.HealthCheck(); err != nil {
		log.Fatal("Database health check failed:", err)
	}

	log.Println("✅ All migrations completed successfully!")
	log.Println("✅ Database connection healthy!")
	log.Println("\nYou can now check your PostgreSQL database to see the new tables:")
	log.Println("  - schools")
	log.Println("  - school_invites")
	log.Println("  - users")
	log.Println("  - chats")
	log.Println("  - chat_memberships")
	log.Println("  - messages")
	log.Println("  - read_receipts")
	log.Println("  - chat_invites")
	log.Println("  - gamification_profiles")
	log.Println("  - xp_events")
	log.Println("  - achievements / user_achievements")
	log.Println("  - badges / user_badges")
	log.Println("  - challenges / user_challenge_progresses")
	log.Println("  - quiz_histories / subject_progresses")
	log.Println("  - study_sessions")
	log.Println("  - user_notifications")
	log.Println("  - telemetry_events")
	log.Println("  - jwt_token_blacklist")
	log.Println("  - cron_job_logs")
}
