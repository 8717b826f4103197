package models

import "time"

// ConversationMeta tracks per-user state of a conversation, one row per
// (conversation, user) pair. Rows are created lazily by upsert the first
// time a counter is needed and live as long as the conversation does.
type ConversationMeta struct {
	ID             uint   `gorm:"primaryKey" json:"-"`
	ConversationID string `gorm:"not null;uniqueIndex:idx_meta_member" json:"conversationId"`
	UserID         string `gorm:"not null;uniqueIndex:idx_meta_member" json:"userId"`

	// Unread counts messages created after LastReadAt that this user did
	// not author. Incremented atomically in the store, never negative.
	Unread int `gorm:"not null;default:0" json:"unread"`

	// LastReadAt is when the user last fetched history for the
	// conversation, nil until the first read.
	LastReadAt *time.Time `json:"lastReadAt,omitempty"`
}

func (ConversationMeta) TableName() string { return "conversation_meta" }
