package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Message types
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
	MessageTypeAudio = "audio"
	MessageTypeVideo = "video"
)

// MaxMessageContentLen caps message content length.
const MaxMessageContentLen = 10000

// Message is one entry in the append-only message log. Core fields are
// immutable after creation; only read state, reactions, edit and soft-delete
// state mutate. Rows are never physically deleted.
type Message struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SenderID    uint           `gorm:"not null;index:idx_messages_pair" json:"sender_id"`
	Sender      *User          `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	RecipientID uint           `gorm:"not null;index:idx_messages_pair" json:"recipient_id"`
	Recipient   *User          `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
	ProjectID   *uint          `gorm:"index" json:"project_id,omitempty"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	MessageType string         `gorm:"not null;default:'text'" json:"message_type"`
	Attachments []Attachment   `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
	ReplyToID   *uint          `json:"reply_to_id,omitempty"`
	IsRead      bool           `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
	EditedAt    *time.Time     `json:"edited_at,omitempty"`
	Reactions   []Reaction     `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Attachment is a descriptor handed to us by the file storage collaborator.
// The bytes themselves never transit this service.
type Attachment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"not null;index" json:"message_id"`
	FileID    string    `gorm:"not null" json:"file_id"`
	Filename  string    `gorm:"not null" json:"filename"`
	URL       string    `gorm:"not null" json:"url"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Reaction is an emoji reaction on a message, unique per (message, user, emoji).
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_reactions_unique" json:"message_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reactions_unique" json:"user_id"`
	Emoji     string    `gorm:"not null;uniqueIndex:idx_reactions_unique" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidMessageType reports whether t is a known message type. Empty is
// accepted and defaults to text at write time.
func ValidMessageType(t string) bool {
	switch t {
	case "", MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeAudio, MessageTypeVideo:
		return true
	}
	return false
}

// TrimContent normalizes content the way the send path expects it.
func TrimContent(content string) string {
	return strings.TrimSpace(content)
}

// CounterpartID returns the other participant of the message relative to
// userID.
func (m *Message) CounterpartID(userID uint) uint {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// Conversation is a derived summary of one counterpart thread. It is never
// persisted; it is recomputed from the message log on every fetch, so it can
// be stale but never wrong.
type Conversation struct {
	Counterpart     Profile    `json:"counterpart"`
	ProjectID       *uint      `json:"project_id,omitempty"`
	LastMessage     string     `json:"last_message"`
	LastMessageID   uint       `json:"last_message_id,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	UnreadCount     int64      `json:"unread_count"`
	Online          bool       `json:"online"`
}
