package chat_test

import (
	"context"
	"time"

	"roadassist/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

// MockStorage implements storage.Storage for service tests.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) FindConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStorage) FindOrCreateConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	args := m.Called(ctx, conv)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Conversation), args.Bool(1), args.Error(2)
}

func (m *MockStorage) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationSummary), args.Error(1)
}

func (m *MockStorage) ConversationIDsFor(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) GetMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) TouchLastMessage(ctx context.Context, conversationID, preview string, at time.Time) error {
	args := m.Called(ctx, conversationID, preview, at)
	return args.Error(0)
}

func (m *MockStorage) IncrementUnread(ctx context.Context, conversationID string, userIDs []string) error {
	args := m.Called(ctx, conversationID, userIDs)
	return args.Error(0)
}

func (m *MockStorage) ResetUnread(ctx context.Context, conversationID, userID string) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *MockStorage) FindAssistRequest(ctx context.Context, id string) (*models.AssistRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AssistRequest), args.Error(1)
}

func (m *MockStorage) GetPushTokens(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) RemovePushToken(ctx context.Context, userID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func (m *MockStorage) PublishRoomEvent(ctx context.Context, env models.RoomEnvelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

func (m *MockStorage) SubscribeRoomEvents(ctx context.Context) *redis.PubSub {
	m.Called(ctx)
	return nil
}

// MockFanout implements chat.Fanout.
type MockFanout struct {
	mock.Mock
}

func (m *MockFanout) Broadcast(room string, ev models.Event, excludeUserID string) {
	m.Called(room, ev, excludeUserID)
}

func (m *MockFanout) PresentUsers(room string) []string {
	args := m.Called(room)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

// MockPush implements chat.Push.
type MockPush struct {
	mock.Mock
}

func (m *MockPush) NotifyUsers(ctx context.Context, userIDs []string, title, body string, data map[string]string) {
	m.Called(ctx, userIDs, title, body, data)
}
