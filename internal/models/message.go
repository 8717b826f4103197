package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is an append-only chat message. Messages are never edited or
// deleted; history ordering is created_at ascending with Seq breaking
// equal-timestamp ties.
type Message struct {
	ID string `gorm:"primaryKey" json:"id"`

	// Seq is a database-assigned insertion sequence used as the ordering
	// tiebreaker for identical timestamps.
	Seq uint64 `gorm:"autoIncrement;uniqueIndex" json:"-"`

	ConversationID string `gorm:"not null;index:idx_conv_created" json:"conversationId"`
	SenderID       string `gorm:"not null" json:"from"`

	// Content may be empty only when an attachment is present.
	Content string `gorm:"type:text" json:"text"`

	// Attachment is an optional URL of an uploaded image, resolved
	// out-of-band.
	Attachment string `gorm:"type:text" json:"attachment,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_conv_created" json:"createdAt"`

	// TempID echoes the client correlation id on the send ack so the
	// sender can reconcile its optimistic copy. Never persisted.
	TempID string `gorm:"-" json:"tempId,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}
