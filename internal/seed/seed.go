// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"liaison/internal/models"

	"gorm.io/gorm"
)

// SeedOptions configuration for the seeder
type SeedOptions struct {
	NumCoordinators int
	NumClients      int
	NumProjects     int
	NumMessages     int
	MaxDays         int
	ShouldClean     bool
	SkipBcrypt      bool
	DryRun          bool
}

// Seed populates the database with a demo org: one admin, a pool of
// coordinators and clients, projects wiring them together, and message
// history across direct and project threads.
func Seed(db *gorm.DB, opts SeedOptions) error {
	log.Printf("Starting database seeding: %d coordinators, %d clients, %d projects, %d messages...",
		opts.NumCoordinators, opts.NumClients, opts.NumProjects, opts.NumMessages)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	factory := NewFactory(db, opts)

	admin, err := factory.CreateUser(models.RoleAdmin, func(u *models.User) {
		u.Name = "Ops Admin"
		u.Email = "admin@example.com"
	})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	coordinators := make([]*models.User, 0, opts.NumCoordinators)
	for i := 0; i < opts.NumCoordinators; i++ {
		coordinator, err := factory.CreateUser(models.RoleCoordinator)
		if err != nil {
			return fmt.Errorf("failed to create coordinator: %w", err)
		}
		coordinators = append(coordinators, coordinator)
	}
	log.Printf("Created %d coordinators", len(coordinators))

	clients := make([]*models.User, 0, opts.NumClients)
	for i := 0; i < opts.NumClients; i++ {
		client, err := factory.CreateUser(models.RoleClient)
		if err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}
		clients = append(clients, client)
	}
	log.Printf("Created %d clients", len(clients))

	if len(coordinators) == 0 || len(clients) == 0 {
		log.Println("Skipping projects and messages: need at least one coordinator and one client")
		return nil
	}

	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	projects := make([]*models.Project, 0, opts.NumProjects)
	for i := 0; i < opts.NumProjects; i++ {
		client := clients[r.Intn(len(clients))]
		assigned := []*models.User{coordinators[r.Intn(len(coordinators))]}
		if len(coordinators) > 1 && r.Float32() < 0.3 {
			assigned = append(assigned, coordinators[r.Intn(len(coordinators))])
		}
		project, err := factory.CreateProject(client, assigned)
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		projects = append(projects, project)
	}
	log.Printf("Created %d projects", len(projects))

	created := 0
	for i := 0; i < opts.NumMessages; i++ {
		var sender, recipient *models.User
		var projectID *uint

		if len(projects) > 0 && r.Float32() < 0.4 {
			// Project thread: coordinator <-> that project's client
			project := projects[r.Intn(len(projects))]
			if len(project.Coordinators) == 0 {
				continue
			}
			coordinator := project.Coordinators[r.Intn(len(project.Coordinators))]
			sender = &coordinator
			recipient = findUser(clients, project.ClientID)
			if recipient == nil {
				continue
			}
			projectID = &project.ID
		} else if r.Float32() < 0.3 {
			// Direct thread involving the admin
			sender = admin
			recipient = coordinators[r.Intn(len(coordinators))]
		} else {
			// Direct coordinator <-> client pair that shares a project
			project := projects[r.Intn(len(projects))]
			if len(project.Coordinators) == 0 {
				continue
			}
			coordinator := project.Coordinators[r.Intn(len(project.Coordinators))]
			sender = &coordinator
			recipient = findUser(clients, project.ClientID)
			if recipient == nil {
				continue
			}
		}

		// Half the threads run the other direction
		if r.Float32() < 0.5 {
			sender, recipient = recipient, sender
		}

		message, err := factory.CreateMessage(sender, recipient, projectID, func(m *models.Message) {
			// Most recent traffic stays unread so conversation badges show up
			m.IsRead = r.Float32() < 0.7
			if m.IsRead {
				readAt := m.CreatedAt.Add(time.Duration(r.Intn(60)) * time.Minute)
				m.ReadAt = &readAt
			}
		})
		if err != nil {
			log.Printf("Failed to create message: %v", err)
			continue
		}
		created++

		if r.Float32() < 0.1 {
			emojis := []string{"👍", "🎉", "❤️", "😂"}
			_ = factory.CreateReaction(recipient, message, emojis[r.Intn(len(emojis))])
		}
		if r.Float32() < 0.05 {
			if _, err := factory.CreateAttachment(message); err != nil {
				log.Printf("Failed to create attachment: %v", err)
			}
		}

		if created%200 == 0 && created > 0 {
			log.Printf("Created %d messages...", created)
		}
	}
	log.Printf("Created %d messages", created)

	log.Println("Database seeding completed successfully!")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	sql := `TRUNCATE TABLE reactions, attachments, messages, project_coordinators, projects, users RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

func findUser(users []*models.User, id uint) *models.User {
	for _, user := range users {
		if user.ID == id {
			return user
		}
	}
	return nil
}
