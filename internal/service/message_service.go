package service

import (
	"context"
	"errors"

	"liaison/internal/models"
	"liaison/internal/observability"
	"liaison/internal/repository"

	"gorm.io/gorm"
)

// MessageService provides message log business logic.
type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	projectRepo repository.ProjectRepository
	canMessage  func(ctx context.Context, senderID, recipientID uint) (bool, error)
}

// NewMessageService returns a new MessageService.
func NewMessageService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	projectRepo repository.ProjectRepository,
	canMessage func(ctx context.Context, senderID, recipientID uint) (bool, error),
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		projectRepo: projectRepo,
		canMessage:  canMessage,
	}
}

// SendMessageInput is the input for sending a message.
type SendMessageInput struct {
	SenderID    uint
	RecipientID uint
	Content     string
	MessageType string
	ProjectID   *uint
	ReplyToID   *uint
	Attachments []models.Attachment
}

// ListMessagesInput is the input for fetching a thread page.
type ListMessagesInput struct {
	UserID        uint
	ParticipantID uint
	ProjectID     *uint
	Page          int
	Limit         int
	UnreadOnly    bool
}

const defaultPageLimit = 50
const maxPageLimit = 100

// Send validates, authorizes and persists a message, then returns the stored
// row with sender and recipient projections resolved.
//
// Permission is re-evaluated here even when the caller already passed a
// listing-time check: membership can change between list and send.
func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	in.Content = models.TrimContent(in.Content)
	if in.Content == "" {
		// Attachments never stand in for content: every stored row carries text
		return nil, models.NewValidationError("Message content is required")
	}
	if len(in.Content) > models.MaxMessageContentLen {
		return nil, models.NewValidationError("Message content too long (max 10000 characters)")
	}
	if !models.ValidMessageType(in.MessageType) {
		return nil, models.NewValidationError("Unknown message type")
	}
	if in.MessageType == "" {
		in.MessageType = models.MessageTypeText
	}

	allowed, err := s.canMessage(ctx, in.SenderID, in.RecipientID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, models.NewForbiddenError("You are not allowed to message this user")
	}

	if in.ProjectID != nil {
		project, err := s.projectRepo.GetByID(ctx, *in.ProjectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, models.NewNotFoundError("Project", *in.ProjectID)
			}
			return nil, err
		}
		if !project.IsMember(in.SenderID) || !project.IsMember(in.RecipientID) {
			return nil, models.NewForbiddenError("Both participants must be members of the project")
		}
	}

	if in.ReplyToID != nil {
		parent, err := s.messageRepo.GetByID(ctx, *in.ReplyToID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, models.NewNotFoundError("Message", *in.ReplyToID)
			}
			return nil, err
		}
		if parent.SenderID != in.SenderID && parent.RecipientID != in.SenderID {
			return nil, models.NewForbiddenError("Cannot reply to a message outside your threads")
		}
	}

	message := &models.Message{
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		ProjectID:   in.ProjectID,
		Content:     in.Content,
		MessageType: in.MessageType,
		ReplyToID:   in.ReplyToID,
		Attachments: in.Attachments,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	if sender, err := s.userRepo.GetByID(ctx, in.SenderID); err == nil {
		message.Sender = sender
	}
	if recipient, err := s.userRepo.GetByID(ctx, in.RecipientID); err == nil {
		message.Recipient = recipient
	}

	scope := "direct"
	if in.ProjectID != nil {
		scope = "project"
	}
	observability.MessagesSent.WithLabelValues(scope).Inc()

	return message, nil
}

// List returns one ascending-time page of the thread between the user and the
// participant, plus the total matching count. Direct and project threads are
// disjoint: omitting ProjectID selects only messages with no project.
func (s *MessageService) List(ctx context.Context, in ListMessagesInput) ([]*models.Message, int64, error) {
	if in.ParticipantID == 0 {
		return nil, 0, models.NewValidationError("Participant id is required")
	}
	if in.Limit <= 0 {
		in.Limit = defaultPageLimit
	}
	if in.Limit > maxPageLimit {
		in.Limit = maxPageLimit
	}
	if in.Page < 1 {
		in.Page = 1
	}

	if _, err := s.userRepo.GetByID(ctx, in.ParticipantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, models.NewNotFoundError("User", in.ParticipantID)
		}
		return nil, 0, err
	}

	return s.messageRepo.ListBetween(ctx, repository.MessageQuery{
		UserID:     in.UserID,
		OtherID:    in.ParticipantID,
		ProjectID:  in.ProjectID,
		Limit:      in.Limit,
		Offset:     (in.Page - 1) * in.Limit,
		UnreadOnly: in.UnreadOnly,
	})
}

// MarkRead flips every unread message from the counterpart to the user and
// returns how many rows changed. Safe to repeat: the second call reports
// zero.
func (s *MessageService) MarkRead(ctx context.Context, userID, counterpartID uint) (int64, error) {
	if counterpartID == 0 {
		return 0, models.NewValidationError("Participant id is required")
	}
	rows, err := s.messageRepo.MarkRead(ctx, userID, counterpartID)
	if err != nil {
		return 0, err
	}
	observability.MessagesRead.Add(float64(rows))
	return rows, nil
}

// React adds an emoji reaction to a message the user participates in.
// Repeating the same reaction is a no-op.
func (s *MessageService) React(ctx context.Context, messageID, userID uint, emoji string) (*models.Message, error) {
	if emoji == "" {
		return nil, models.NewValidationError("Emoji is required")
	}
	msg, err := s.participantMessage(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	err = s.messageRepo.AddReaction(ctx, &models.Reaction{
		MessageID: msg.ID,
		UserID:    userID,
		Emoji:     emoji,
	})
	if err != nil {
		return nil, err
	}
	return s.messageRepo.GetByID(ctx, messageID)
}

// Unreact removes the user's emoji reaction from a message.
func (s *MessageService) Unreact(ctx context.Context, messageID, userID uint, emoji string) (*models.Message, error) {
	if emoji == "" {
		return nil, models.NewValidationError("Emoji is required")
	}
	msg, err := s.participantMessage(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.messageRepo.RemoveReaction(ctx, msg.ID, userID, emoji); err != nil {
		return nil, err
	}
	return s.messageRepo.GetByID(ctx, messageID)
}

// Edit replaces the content of the user's own message and stamps edited_at.
func (s *MessageService) Edit(ctx context.Context, messageID, userID uint, content string) (*models.Message, error) {
	content = models.TrimContent(content)
	if content == "" {
		return nil, models.NewValidationError("Message content is required")
	}
	if len(content) > models.MaxMessageContentLen {
		return nil, models.NewValidationError("Message content too long (max 10000 characters)")
	}
	msg, err := s.participantMessage(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, models.NewForbiddenError("Only the sender can edit a message")
	}
	if err := s.messageRepo.Edit(ctx, msg.ID, content); err != nil {
		return nil, err
	}
	return s.messageRepo.GetByID(ctx, messageID)
}

// Delete soft-deletes the user's own message. The row is retained; it simply
// stops appearing in thread listings and conversation summaries.
func (s *MessageService) Delete(ctx context.Context, messageID, userID uint) error {
	msg, err := s.participantMessage(ctx, messageID, userID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return models.NewForbiddenError("Only the sender can delete a message")
	}
	return s.messageRepo.SoftDelete(ctx, msg.ID)
}

func (s *MessageService) participantMessage(ctx context.Context, messageID, userID uint) (*models.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", messageID)
		}
		return nil, err
	}
	if msg.SenderID != userID && msg.RecipientID != userID {
		// Collapse to not-found so outsiders cannot probe for message ids
		return nil, models.NewNotFoundError("Message", messageID)
	}
	return msg, nil
}
