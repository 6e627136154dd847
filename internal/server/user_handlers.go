package server

import (
	"errors"

	"liaison/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("User", userID))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(user)
}

// GetUsers handles GET /api/users. Returns display projections of active
// users, optionally filtered by role, with the presence flag resolved for
// each.
func (s *Server) GetUsers(c *fiber.Ctx) error {
	ctx := c.UserContext()

	role := c.Query("role")
	if role != "" && !models.ValidRole(role) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown role filter"))
	}

	var (
		users []*models.User
		err   error
	)
	if role != "" {
		users, err = s.userRepo.ListActiveByRole(ctx, role)
	} else {
		users, err = s.userRepo.ListActive(ctx)
	}
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	ids := make([]uint, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	online := s.presenceService.OnlineSet(ctx, ids)

	type userWithPresence struct {
		models.Profile
		Email  string `json:"email"`
		Online bool   `json:"online"`
	}
	result := make([]userWithPresence, 0, len(users))
	for _, user := range users {
		result = append(result, userWithPresence{
			Profile: user.Profile(),
			Email:   user.Email,
			Online:  online[user.ID],
		})
	}

	return c.JSON(result)
}
