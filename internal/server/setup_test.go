package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"liaison/internal/config"
	"liaison/internal/featureflags"
	"liaison/internal/middleware"
	"liaison/internal/models"
	"liaison/internal/notifications"
	"liaison/internal/repository"
	"liaison/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type serverFixture struct {
	server      *Server
	db          *gorm.DB
	admin       *models.User
	coordinator *models.User
	client      *models.User
	outsider    *models.User
	project     *models.Project
}

// newServerFixture builds a Server over in-memory sqlite with one admin, one
// coordinator/client pair sharing a project, and one client with no projects.
// Redis stays nil so everything exercises the degraded-but-working paths.
func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:    "server-test-secret-key-0123456789",
		Port:         "0",
		Env:          "test",
		FeatureFlags: "typing=on,presence=on",
	}
	middleware.InitMiddleware(cfg)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Project{}, &models.ProjectCoordinator{},
		&models.Message{}, &models.Attachment{}, &models.Reaction{},
	))

	f := &serverFixture{db: db}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	mkUser := func(name, role string) *models.User {
		u := &models.User{Name: name, Email: name + "@example.com", Password: string(hash), Role: role, Active: true}
		require.NoError(t, db.Create(u).Error)
		return u
	}
	f.admin = mkUser("admin", models.RoleAdmin)
	f.coordinator = mkUser("coordinator", models.RoleCoordinator)
	f.client = mkUser("client", models.RoleClient)
	f.outsider = mkUser("outsider", models.RoleClient)

	f.project = &models.Project{
		Name:         "Rollout",
		ClientID:     f.client.ID,
		Coordinators: []models.User{*f.coordinator},
	}
	require.NoError(t, db.Create(f.project).Error)

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	s := &Server{
		config:       cfg,
		db:           db,
		userRepo:     userRepo,
		projectRepo:  projectRepo,
		messageRepo:  messageRepo,
		featureFlags: featureflags.NewManager(cfg.FeatureFlags),
	}
	s.permissionService = service.NewPermissionService(userRepo, projectRepo.HaveSharedProject)
	s.presenceService = service.NewPresenceService(nil, cfg.PresenceWindow())
	s.messageService = service.NewMessageService(messageRepo, userRepo, projectRepo, s.permissionService.CanMessage)
	s.conversationService = service.NewConversationService(
		messageRepo, userRepo, s.permissionService.PermittedContacts, s.presenceService.IsOnline)
	s.notifier = notifications.NewNotifier(nil)
	s.roomHub = notifications.NewRoomHub()
	s.hubs = []wireableHub{s.roomHub}

	f.server = s
	return f
}

// appAs mounts the protected API routes behind a stub auth layer acting as the
// given user.
func (f *serverFixture) appAs(userID uint) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})

	s := f.server
	app.Get("/api/users/me", s.GetMyProfile)
	app.Get("/api/users/", s.GetUsers)
	app.Post("/api/messages/", s.SendMessage)
	app.Get("/api/messages/", s.GetMessages)
	app.Post("/api/messages/read", s.MarkMessagesRead)
	app.Post("/api/messages/:id/reactions", s.AddReaction)
	app.Delete("/api/messages/:id/reactions", s.RemoveReaction)
	app.Put("/api/messages/:id", s.EditMessage)
	app.Delete("/api/messages/:id", s.DeleteMessage)
	app.Get("/api/conversations", s.GetConversations)
	app.Get("/api/feature-flags", s.GetFeatureFlags)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}
