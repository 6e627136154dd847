package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetConversations handles GET /api/conversations.
//
// This endpoint never errors: the list is a derived, read-mostly view, so an
// internal failure yields HTTP 200 with a partial or empty list and the
// degraded marker set instead of a hard error.
func (s *Server) GetConversations(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	result := s.conversationService.List(ctx, userID)
	return c.JSON(result)
}
