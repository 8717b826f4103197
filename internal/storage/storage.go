package storage

import (
	"context"
	"errors"
	"time"

	"roadassist/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Storage is the persistence surface consumed by the chat service, the
// hub, the push bridge and the watcher. The durable store is the only
// shared mutable resource in the system; its unique index on the
// participants hash and its atomic unread increment are the whole
// concurrency-safety story.
type Storage interface {
	// Conversations
	FindConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	FindOrCreateConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	ConversationIDsFor(ctx context.Context, userID string) ([]string, error)

	// Messages
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]models.Message, error)
	TouchLastMessage(ctx context.Context, conversationID, preview string, at time.Time) error

	// Per-user counters
	IncrementUnread(ctx context.Context, conversationID string, userIDs []string) error
	ResetUnread(ctx context.Context, conversationID, userID string) error

	// Assistance requests (read-only here)
	FindAssistRequest(ctx context.Context, id string) (*models.AssistRequest, error)

	// Push tokens
	GetPushTokens(ctx context.Context, userID string) ([]string, error)
	RemovePushToken(ctx context.Context, userID, token string) error

	// Cross-instance fan-out bridge
	PublishRoomEvent(ctx context.Context, env models.RoomEnvelope) error
	SubscribeRoomEvents(ctx context.Context) *redis.PubSub
}

// Service implements Storage on PostgreSQL (gorm) and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb}
}

// FindConversationByID returns (nil, nil) when no such conversation
// exists; the caller decides how absence maps to its error taxonomy.
func (s *Service) FindConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindOrCreateConversation resolves a conversation by its identity key
// (participants_hash, request_id), creating it when absent. Two
// concurrent calls for the same pair race on the unique index; the loser
// gets a duplicate-key error and re-reads the winner's row. No locking.
// The bool reports whether this call created the row.
func (s *Service) FindOrCreateConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	if conv.ParticipantsHash == "" {
		conv.ParticipantsHash = models.ParticipantsHash(conv.Participants)
	}

	existing, err := s.findByIdentity(ctx, conv.ParticipantsHash, conv.RequestID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if err := s.DB.WithContext(ctx).Create(conv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the creation race; the winner's row is the canonical one.
			existing, rerr := s.findByIdentity(ctx, conv.ParticipantsHash, conv.RequestID)
			if rerr != nil {
				return nil, false, rerr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return conv, true, nil
}

func (s *Service) findByIdentity(ctx context.Context, hash, requestID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.WithContext(ctx).
		Where("participants_hash = ? AND request_id = ?", hash, requestID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns the user's conversations newest-activity
// first, each carrying that user's unread counter.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	var rows []models.ConversationSummary
	err := s.DB.WithContext(ctx).
		Table("conversations AS c").
		Select("c.*, COALESCE(m.unread, 0) AS unread").
		Joins("LEFT JOIN conversation_meta m ON m.conversation_id = c.id AND m.user_id = ?", userID).
		Where("? = ANY(c.participants)", userID).
		Order("c.last_message_at DESC NULLS LAST, c.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ConversationIDsFor lists the ids of every conversation the user belongs
// to, used to compute room memberships at connect time.
func (s *Service) ConversationIDsFor(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("? = ANY(participants)", userID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindAssistRequest returns (nil, nil) when the request does not exist.
func (s *Service) FindAssistRequest(ctx context.Context, id string) (*models.AssistRequest, error) {
	var req models.AssistRequest
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}
