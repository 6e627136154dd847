package server

import (
	"strconv"

	"liaison/internal/models"

	"github.com/gofiber/fiber/v2"
)

// parseID parses a positive integer route parameter. Malformed ids are a
// validation error, never silently coerced. On failure the response is
// already written and the caller should return nil.
func (s *Server) parseID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		verr := models.NewValidationError("Invalid " + name + " parameter")
		_ = models.RespondWithError(c, fiber.StatusBadRequest, verr)
		return 0, verr
	}
	return uint(id), nil
}

// parseQueryID parses a positive integer query parameter the same way.
func (s *Server) parseQueryID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Query(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		verr := models.NewValidationError("Invalid " + name + " parameter")
		_ = models.RespondWithError(c, fiber.StatusBadRequest, verr)
		return 0, verr
	}
	return uint(id), nil
}

// optionalQueryID parses an optional positive integer query parameter.
// Returns nil when absent; a present-but-malformed value is a validation
// error like everywhere else.
func (s *Server) optionalQueryID(c *fiber.Ctx, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		verr := models.NewValidationError("Invalid " + name + " parameter")
		_ = models.RespondWithError(c, fiber.StatusBadRequest, verr)
		return nil, verr
	}
	v := uint(id)
	return &v, nil
}
