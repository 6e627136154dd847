package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// PresenceTouch returns a middleware that records last-seen activity for the
// authenticated user on every request passing through it. Presence is
// soft-state: any authenticated activity counts, not just chat traffic.
// Must be mounted after AuthRequired.
func PresenceTouch(touch func(ctx context.Context, userID uint)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if touch != nil {
			if uid, ok := c.Locals("userID").(uint); ok {
				touch(c.UserContext(), uid)
			}
		}
		return c.Next()
	}
}
