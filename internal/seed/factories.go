// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"liaison/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts SeedOptions
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	// seed gofakeit for richer content
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db, opts: opts, nextID: 1000}
}

// CreateUser constructs and persists a sample `models.User` with the given
// role. Optional override functions may modify the generated user before
// saving.
func (f *Factory) CreateUser(role string, overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Name:   gofakeit.Name(),
		Email:  gofakeit.Email(),
		Role:   role,
		Active: true,
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: role=%s email=%s", user.Role, user.Email)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateProject constructs and persists a `models.Project` owned by the given
// client with the given coordinators assigned.
func (f *Factory) CreateProject(client *models.User, coordinators []*models.User, overrides ...func(*models.Project)) (*models.Project, error) {
	project := &models.Project{
		Name:      gofakeit.AppName(),
		ClientID:  client.ID,
		CreatedBy: client.ID,
	}
	for _, coordinator := range coordinators {
		project.Coordinators = append(project.Coordinators, *coordinator)
	}

	for _, override := range overrides {
		override(project)
	}

	if f.opts.DryRun {
		f.nextID++
		project.ID = f.nextID
		log.Printf("[dry-run] CreateProject: name=%q client=%d coordinators=%d", project.Name, project.ClientID, len(coordinators))
		return project, nil
	}

	if err := f.db.Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

// CreateMessage constructs and persists a sample `models.Message` from sender
// to recipient, optionally scoped to a project.
func (f *Factory) CreateMessage(sender, recipient *models.User, projectID *uint, overrides ...func(*models.Message)) (*models.Message, error) {
	message := &models.Message{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		ProjectID:   projectID,
		Content:     gofakeit.Sentence(10),
		MessageType: models.MessageTypeText,
	}

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	minsBack := r.Intn(60)
	message.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)

	for _, override := range overrides {
		override(message)
	}

	if f.opts.DryRun {
		f.nextID++
		message.ID = f.nextID
		log.Printf("[dry-run] CreateMessage: %d -> %d project=%v", message.SenderID, message.RecipientID, projectID)
		return message, nil
	}

	if err := f.db.Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

// CreateReaction persists an emoji reaction from `user` on `message`.
func (f *Factory) CreateReaction(user *models.User, message *models.Message, emoji string) error {
	reaction := &models.Reaction{
		MessageID: message.ID,
		UserID:    user.ID,
		Emoji:     emoji,
	}
	if f.opts.DryRun {
		log.Printf("[dry-run] CreateReaction: user=%d message=%d emoji=%s", user.ID, message.ID, emoji)
		return nil
	}
	return f.db.Create(reaction).Error
}

// CreateAttachment persists a sample attachment descriptor on `message`.
func (f *Factory) CreateAttachment(message *models.Message, overrides ...func(*models.Attachment)) (*models.Attachment, error) {
	attachment := &models.Attachment{
		MessageID: message.ID,
		FileID:    gofakeit.UUID(),
		Filename:  fmt.Sprintf("%s.pdf", gofakeit.Word()),
		URL:       gofakeit.URL(),
		MimeType:  "application/pdf",
		Size:      int64(gofakeit.Number(1024, 4*1024*1024)),
	}

	for _, override := range overrides {
		override(attachment)
	}

	if f.opts.DryRun {
		f.nextID++
		attachment.ID = f.nextID
		log.Printf("[dry-run] CreateAttachment: message=%d file=%s", message.ID, attachment.Filename)
		return attachment, nil
	}

	if err := f.db.Create(attachment).Error; err != nil {
		return nil, err
	}
	return attachment, nil
}
