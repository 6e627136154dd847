package server

import (
	"encoding/json"
	"strconv"

	"liaison/internal/models"
	"liaison/internal/notifications"
	"liaison/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SendMessage handles POST /api/messages
func (s *Server) SendMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		RecipientID uint                `json:"recipient_id"`
		Content     string              `json:"content"`
		MessageType string              `json:"message_type,omitempty"`
		ProjectID   *uint               `json:"project_id,omitempty"`
		ReplyToID   *uint               `json:"reply_to_id,omitempty"`
		Attachments []models.Attachment `json:"attachments,omitempty"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.RecipientID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Recipient id is required"))
	}

	message, err := s.messageService.Send(ctx, service.SendMessageInput{
		SenderID:    userID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
		MessageType: req.MessageType,
		ProjectID:   req.ProjectID,
		ReplyToID:   req.ReplyToID,
		Attachments: req.Attachments,
	})
	if err != nil {
		return models.RespondAppError(c, err)
	}

	s.broadcastMessage(c, message)

	return c.Status(fiber.StatusCreated).JSON(message)
}

// broadcastMessage fans the persisted message out to the recipient's personal
// room and, for project messages, the project room. Best-effort: the stored
// row is the source of truth and surfaces on the next list fetch regardless.
func (s *Server) broadcastMessage(c *fiber.Ctx, message *models.Message) {
	event := notifications.Event{
		Type:    "message:new",
		UserID:  message.SenderID,
		Payload: message,
	}

	if s.redis != nil {
		// Publish through Redis so every instance's hub fans out; this
		// instance's hub receives it via its own subscription.
		payload, err := json.Marshal(event)
		if err != nil {
			return
		}
		_ = s.notifier.PublishMessageToUser(c.UserContext(), message.RecipientID, string(payload))
		if message.ProjectID != nil {
			_ = s.notifier.PublishMessageToProject(c.UserContext(), *message.ProjectID, string(payload))
		}
		// Hand-off to notification consumers (badge counts, push relays). A
		// compact envelope, not the message body: consumers re-fetch if they
		// need more than the pointer.
		notice := notifications.Event{
			Type:   "notification:new",
			UserID: message.SenderID,
			Payload: map[string]interface{}{
				"message_id": message.ID,
				"sender_id":  message.SenderID,
			},
		}
		if noticeJSON, merr := json.Marshal(notice); merr == nil {
			_ = s.notifier.PublishNotification(c.UserContext(), message.RecipientID, string(noticeJSON))
		}
		return
	}

	// No Redis: deliver to connections held by this instance only
	s.roomHub.BroadcastToUser(message.RecipientID, event)
	if message.ProjectID != nil {
		s.roomHub.BroadcastToProject(*message.ProjectID, event)
	}
}

// GetMessages handles GET /api/messages. Returns one ascending-time page of
// the thread with ?participant_id, optionally scoped to ?project_id.
func (s *Server) GetMessages(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	participantID, err := s.parseQueryID(c, "participant_id")
	if err != nil {
		return nil
	}
	projectID, err := s.optionalQueryID(c, "project_id")
	if err != nil {
		return nil
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	unreadOnly := c.QueryBool("unread_only")

	messages, total, err := s.messageService.List(ctx, service.ListMessagesInput{
		UserID:        userID,
		ParticipantID: participantID,
		ProjectID:     projectID,
		Page:          page,
		Limit:         limit,
		UnreadOnly:    unreadOnly,
	})
	if err != nil {
		return models.RespondAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// MarkMessagesRead handles POST /api/messages/read. Bulk and idempotent:
// repeating the call reports zero updated rows and stays 200.
func (s *Server) MarkMessagesRead(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		ParticipantID uint `json:"participant_id"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	updated, err := s.messageService.MarkRead(ctx, userID, req.ParticipantID)
	if err != nil {
		return models.RespondAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"updated": updated,
	})
}

// AddReaction handles POST /api/messages/:id/reactions
func (s *Server) AddReaction(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Emoji string `json:"emoji"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.messageService.React(ctx, messageID, userID, req.Emoji)
	if err != nil {
		return models.RespondAppError(c, err)
	}

	return c.JSON(message)
}

// RemoveReaction handles DELETE /api/messages/:id/reactions
func (s *Server) RemoveReaction(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Emoji string `json:"emoji"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.messageService.Unreact(ctx, messageID, userID, req.Emoji)
	if err != nil {
		return models.RespondAppError(c, err)
	}

	return c.JSON(message)
}

// EditMessage handles PUT /api/messages/:id
func (s *Server) EditMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.messageService.Edit(ctx, messageID, userID, req.Content)
	if err != nil {
		return models.RespondAppError(c, err)
	}

	return c.JSON(message)
}

// DeleteMessage handles DELETE /api/messages/:id
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.messageService.Delete(ctx, messageID, userID); err != nil {
		return models.RespondAppError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
