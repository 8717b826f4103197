package storage

import (
	"context"
	"encoding/json"

	"roadassist/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const roomEventsChannel = "rooms:events"

func pushTokensKey(userID string) string { return "push:tokens:" + userID }

// GetPushTokens returns the user's registered device tokens. Registration
// is owned by the mobile API; this side only reads and prunes.
func (s *Service) GetPushTokens(ctx context.Context, userID string) ([]string, error) {
	return s.Redis.SMembers(ctx, pushTokensKey(userID)).Result()
}

// RemovePushToken drops a token the push provider reported as permanently
// invalid.
func (s *Service) RemovePushToken(ctx context.Context, userID, token string) error {
	return s.Redis.SRem(ctx, pushTokensKey(userID), token).Err()
}

// PublishRoomEvent forwards a room broadcast to every server instance via
// Redis Pub/Sub.
func (s *Service) PublishRoomEvent(ctx context.Context, env models.RoomEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, roomEventsChannel, payload).Err()
}

// SubscribeRoomEvents subscribes to the cross-instance broadcast channel.
func (s *Service) SubscribeRoomEvents(ctx context.Context) *redis.PubSub {
	return s.Redis.Subscribe(ctx, roomEventsChannel)
}
