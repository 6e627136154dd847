package repository

import (
	"context"
	"time"

	"liaison/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageQuery narrows a thread history fetch. A nil ProjectID selects the
// direct thread between the two users; a non-nil one selects that project's
// thread. The two never mix.
type MessageQuery struct {
	UserID     uint
	OtherID    uint
	ProjectID  *uint
	Limit      int
	Offset     int
	UnreadOnly bool
}

// MessageRepository defines the interface for message log operations. The log
// is append-only: rows mutate only in read state, reactions, edit and
// soft-delete fields.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	ListBetween(ctx context.Context, q MessageQuery) ([]*models.Message, int64, error)
	ListForUser(ctx context.Context, userID uint) ([]*models.Message, error)
	MarkRead(ctx context.Context, readerID, senderID uint) (int64, error)
	AddReaction(ctx context.Context, reaction *models.Reaction) error
	RemoveReaction(ctx context.Context, messageID, userID uint, emoji string) error
	Edit(ctx context.Context, messageID uint, content string) error
	SoftDelete(ctx context.Context, messageID uint) error
}

// messageRepository implements MessageRepository
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Attachments").
		Preload("Reactions").
		First(&msg, id).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// pairScope selects both directions of a thread and keeps direct and project
// threads disjoint.
func pairScope(q MessageQuery) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where(
			"((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))",
			q.UserID, q.OtherID, q.OtherID, q.UserID,
		)
		if q.ProjectID != nil {
			return db.Where("project_id = ?", *q.ProjectID)
		}
		return db.Where("project_id IS NULL")
	}
}

func (r *messageRepository) ListBetween(ctx context.Context, q MessageQuery) ([]*models.Message, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Message{}).Scopes(pairScope(q))
	if q.UnreadOnly {
		base = base.Where("recipient_id = ? AND is_read = ?", q.UserID, false)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []*models.Message
	err := base.Session(&gorm.Session{}).
		Preload("Sender").
		Preload("Attachments").
		Preload("Reactions").
		Order("created_at DESC, id DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	// Fetched DESC to page from the latest; clients expect chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, total, nil
}

func (r *messageRepository) ListForUser(ctx context.Context, userID uint) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&messages).Error
	return messages, err
}

// MarkRead flips every unread message from senderID to readerID, across the
// direct thread and any project threads, in one atomic update. Idempotent:
// already-read rows are untouched and a second call reports zero rows.
func (r *messageRepository) MarkRead(ctx context.Context, readerID, senderID uint) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_id = ? AND sender_id = ? AND is_read = ?", readerID, senderID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	return res.RowsAffected, res.Error
}

func (r *messageRepository) AddReaction(ctx context.Context, reaction *models.Reaction) error {
	// Duplicate (message, user, emoji) is a no-op
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(reaction).Error
}

func (r *messageRepository) RemoveReaction(ctx context.Context, messageID, userID uint, emoji string) error {
	return r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&models.Reaction{}).Error
}

func (r *messageRepository) Edit(ctx context.Context, messageID uint, content string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{"content": content, "edited_at": now}).Error
}

func (r *messageRepository) SoftDelete(ctx context.Context, messageID uint) error {
	return r.db.WithContext(ctx).Delete(&models.Message{}, messageID).Error
}
