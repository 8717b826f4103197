package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"roadassist/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveMessage persists a message. If the structured write is rejected for
// any reason other than a key conflict, it degrades to a raw insert that
// preserves the same logical shape, so a schema-level hiccup does not fail
// the user-visible send.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	err := s.DB.WithContext(ctx).Create(msg).Error
	if err == nil || errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}

	log.Printf("WARN: structured message insert failed, retrying raw: %v", err)
	return s.DB.WithContext(ctx).Exec(
		`INSERT INTO messages (id, conversation_id, sender_id, content, attachment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Attachment, msg.CreatedAt,
	).Error
}

// GetMessages serves the most recent window of a conversation's history,
// returned oldest-first. A non-nil before bounds the window to messages
// strictly older than that instant.
func (s *Service) GetMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]models.Message, error) {
	q := s.DB.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if before != nil {
		q = q.Where("created_at < ?", *before)
	}

	var msgs []models.Message
	if err := q.Order("created_at DESC, seq DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// TouchLastMessage updates the denormalized conversation preview.
func (s *Service) TouchLastMessage(ctx context.Context, conversationID, preview string, at time.Time) error {
	return s.DB.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message":    preview,
			"last_message_at": at,
		}).Error
}

// IncrementUnread bumps the unread counter of every listed user by exactly
// one, creating missing rows with unread = 1. The increment runs in the
// database, not read-modify-write, so concurrent sends never lose counts.
func (s *Service) IncrementUnread(ctx context.Context, conversationID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	metas := make([]models.ConversationMeta, 0, len(userIDs))
	for _, id := range userIDs {
		metas = append(metas, models.ConversationMeta{
			ConversationID: conversationID,
			UserID:         id,
			Unread:         1,
		})
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"unread": gorm.Expr("conversation_meta.unread + 1"),
		}),
	}).Create(&metas).Error
}

// ResetUnread zeroes the user's counter and stamps the read time,
// creating the row if the user never had one.
func (s *Service) ResetUnread(ctx context.Context, conversationID, userID string) error {
	now := time.Now().UTC()
	meta := models.ConversationMeta{
		ConversationID: conversationID,
		UserID:         userID,
		Unread:         0,
		LastReadAt:     &now,
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"unread":       0,
			"last_read_at": now,
		}),
	}).Create(&meta).Error
}
