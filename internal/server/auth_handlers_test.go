package server

import (
	"net/http"
	"testing"

	"liaison/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginApp(f *serverFixture) *fiber.App {
	app := fiber.New()
	app.Post("/api/auth/login", f.server.Login)
	return app
}

func TestLogin(t *testing.T) {
	f := newServerFixture(t)
	app := loginApp(f)

	t.Run("Success returns token and user", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/auth/login", map[string]interface{}{
			"email":    "admin@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEmpty(t, body["token"])

		user := body["user"].(map[string]interface{})
		assert.EqualValues(t, f.admin.ID, user["id"])
		_, leaked := user["password"]
		assert.False(t, leaked, "password hash must never serialize")
	})

	t.Run("Token round-trips through the auth middleware", func(t *testing.T) {
		_, body := doJSON(t, app, http.MethodPost, "/api/auth/login", map[string]interface{}{
			"email":    "coordinator@example.com",
			"password": "password123",
		})
		token := body["token"].(string)

		userID, err := middleware.ParseUserID(token)
		require.NoError(t, err)
		assert.Equal(t, f.coordinator.ID, userID)
	})

	t.Run("Wrong password", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/auth/login", map[string]interface{}{
			"email":    "admin@example.com",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid credentials", body["error"])
	})

	t.Run("Unknown email reads the same as wrong password", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/auth/login", map[string]interface{}{
			"email":    "nobody@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid credentials", body["error"])
	})

	t.Run("Deactivated account", func(t *testing.T) {
		require.NoError(t, f.db.Model(f.outsider).Update("active", false).Error)
		resp, body := doJSON(t, app, http.MethodPost, "/api/auth/login", map[string]interface{}{
			"email":    "outsider@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Account is deactivated", body["error"])
	})

	t.Run("Missing fields", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/auth/login", map[string]interface{}{
			"email": "admin@example.com",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
