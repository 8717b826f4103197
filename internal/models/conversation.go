package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Conversation is a durable thread between a fixed set of participants.
// The participant set is immutable after creation; uniqueness of a direct
// conversation is enforced by the (participants_hash, request_id) index,
// not by application-level locking.
type Conversation struct {
	ID string `gorm:"primaryKey" json:"id"`

	// Participants holds the user IDs allowed to read and write this
	// conversation. Size >= 2, fixed at creation.
	Participants pq.StringArray `gorm:"type:text[];not null" json:"participants"`

	// ParticipantsHash is the sorted join of participant IDs. Combined
	// with RequestID it forms the uniqueness key for the conversation.
	ParticipantsHash string `gorm:"not null;uniqueIndex:idx_conversation_identity" json:"-"`

	// RequestID references the assistance request that spawned this
	// conversation. Empty string when the conversation is not tied to a
	// request; empty rather than NULL so the unique index still applies.
	RequestID string `gorm:"not null;default:'';uniqueIndex:idx_conversation_identity" json:"requestId,omitempty"`

	// Title is an optional display label for group-style conversations.
	Title string `json:"title,omitempty"`

	// LastMessage / LastMessageAt are denormalized preview fields updated
	// best-effort on every send. Not a source of truth.
	LastMessage   string     `json:"lastMessage,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}

// BeforeCreate assigns the ID and the participants hash if the caller has
// not set them.
func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ParticipantsHash == "" {
		c.ParticipantsHash = ParticipantsHash(c.Participants)
	}
	return
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// ParticipantsHash derives the canonical identity of a participant set:
// IDs sorted and joined with ":". Order-independent, so both sides of a
// direct conversation compute the same key.
func ParticipantsHash(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return strings.Join(sorted, ":")
}

// ConversationSummary is a list-view row: the conversation plus the
// caller's unread counter.
type ConversationSummary struct {
	Conversation
	Unread int `json:"unread"`
}
