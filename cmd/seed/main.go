// Command main seeds the database with demo users, projects and messages.
package main

import (
	"flag"
	"log"

	"liaison/internal/config"
	"liaison/internal/database"
	"liaison/internal/seed"
)

func main() {
	coordinators := flag.Int("coordinators", 5, "Number of coordinator users")
	clients := flag.Int("clients", 15, "Number of client users")
	projects := flag.Int("projects", 10, "Number of projects")
	messages := flag.Int("messages", 500, "Number of messages")
	maxDays := flag.Int("max-days", 30, "Spread message history over this many days")
	clean := flag.Bool("clean", false, "Truncate existing data first")
	skipBcrypt := flag.Bool("skip-bcrypt", false, "Store plaintext passwords (dev fast mode)")
	dryRun := flag.Bool("dry-run", false, "Log what would be created without writing")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = seed.Seed(db, seed.SeedOptions{
		NumCoordinators: *coordinators,
		NumClients:      *clients,
		NumProjects:     *projects,
		NumMessages:     *messages,
		MaxDays:         *maxDays,
		ShouldClean:     *clean,
		SkipBcrypt:      *skipBcrypt,
		DryRun:          *dryRun,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
