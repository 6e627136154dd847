package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecks(t *testing.T) {
	f := newServerFixture(t)
	app := fiber.New()
	app.Get("/health/live", f.server.LivenessCheck)
	app.Get("/health/ready", f.server.ReadinessCheck)

	t.Run("Liveness", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/health/live", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "up", body["status"])
	})

	t.Run("Readiness without Redis is still healthy", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/health/ready", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "healthy", body["status"])

		checks := body["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "unavailable", checks["redis"], "absent Redis degrades, it does not fail readiness")
	})
}

func TestGetFeatureFlags(t *testing.T) {
	f := newServerFixture(t)
	app := f.appAs(f.client.ID)

	resp, body := doJSON(t, app, http.MethodGet, "/api/feature-flags", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	flags := body["flags"].(map[string]interface{})
	assert.Equal(t, true, flags["typing"])
	assert.Equal(t, true, flags["presence"])
}

func TestParseIDHelpers(t *testing.T) {
	f := newServerFixture(t)
	app := fiber.New()
	app.Get("/things/:id", func(c *fiber.Ctx) error {
		id, err := f.server.parseID(c, "id")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"Valid", "/things/42", http.StatusOK},
		{"Zero is invalid", "/things/0", http.StatusBadRequest},
		{"Negative is invalid", "/things/-1", http.StatusBadRequest},
		{"Non-numeric", "/things/banana", http.StatusBadRequest},
		{"Overflow", "/things/99999999999999999999", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}
