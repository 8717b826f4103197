package models_test

import (
	"testing"

	"roadassist/backend/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestParticipantsHash_OrderIndependent(t *testing.T) {
	a := models.ParticipantsHash([]string{"user-b", "user-a"})
	b := models.ParticipantsHash([]string{"user-a", "user-b"})

	assert.Equal(t, a, b, "both sides of a direct conversation must derive the same key")
	assert.Equal(t, "user-a:user-b", a)
}

func TestParticipantsHash_DoesNotMutateInput(t *testing.T) {
	ids := []string{"z", "a", "m"}
	models.ParticipantsHash(ids)
	assert.Equal(t, []string{"z", "a", "m"}, ids)
}

func TestConversationBeforeCreate_AssignsIDAndHash(t *testing.T) {
	conv := &models.Conversation{
		Participants: pq.StringArray{"user-b", "user-a"},
	}

	err := conv.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	_, parseErr := uuid.Parse(conv.ID)
	assert.NoError(t, parseErr, "conversation ID must be a valid UUID")
	assert.Equal(t, "user-a:user-b", conv.ParticipantsHash)
}

func TestConversationBeforeCreate_PreservesExisting(t *testing.T) {
	conv := &models.Conversation{
		ID:               "existing-id",
		Participants:     pq.StringArray{"a", "b"},
		ParticipantsHash: "precomputed",
	}

	err := conv.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, "existing-id", conv.ID)
	assert.Equal(t, "precomputed", conv.ParticipantsHash)
}

func TestConversationHasParticipant(t *testing.T) {
	conv := &models.Conversation{Participants: pq.StringArray{"a", "b"}}

	assert.True(t, conv.HasParticipant("a"))
	assert.True(t, conv.HasParticipant("b"))
	assert.False(t, conv.HasParticipant("c"))
	assert.False(t, conv.HasParticipant(""))
}

func TestDecodeConversationRef(t *testing.T) {
	assert.Equal(t, "c1", models.DecodeConversationRef([]byte(`"c1"`)))
	assert.Equal(t, "c2", models.DecodeConversationRef([]byte(`{"conversationId":"c2"}`)))
	assert.Equal(t, "", models.DecodeConversationRef([]byte(`42`)))
}

func TestRoomNames(t *testing.T) {
	assert.Equal(t, "user:u1", models.UserRoom("u1"))
	assert.Equal(t, "conv:c1", models.ConversationRoom("c1"))
}
