package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"github.com/djsoulspotti-ops/skajla/database"
	"github.com/djsoulspotti-ops/skajla/services/school"
)

func main() {
	inviteSchool := flag.String("invite", "", "mint a school invite code for the named school")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Initialize database connection using GORM
	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	separator := strings.Repeat("=", 60)
	fmt.Println(separator)
	fmt.Println("Skajla - Database Seeding")
	fmt.Println(separator)
	fmt.Println()

	if err := database.NewSeeder(store.DB()).SeedAll(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	if *inviteSchool != "" {
		code, err := school.NewService(store.DB()).CreateInvite(context.Background(), *inviteSchool)
		if err != nil {
			log.Fatalf("Invite creation failed: %v", err)
		}
		fmt.Println()
		fmt.Printf("Invite code for %q: %s\n", *inviteSchool, code)
		fmt.Println("The code is shown once. The first director registers with it.")
	}

	fmt.Println()
	fmt.Println(separator)
	fmt.Println("Seeding completed successfully!")
	fmt.Println(separator)
}
