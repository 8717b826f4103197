package chathub

import (
	"context"
	"testing"

	"roadassist/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startHub runs a hub without a pub/sub bridge. Hub channel operations
// are unbuffered, so a call returning means every earlier call has been
// fully processed; no sleeps needed.
func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// barrier waits until the hub has finished processing everything sent
// before it. A presence query is answered synchronously by the run loop,
// so its reply doubles as the fence.
func barrier(hub *Hub) { hub.PresentUsers("barrier") }

func TestHub_RegisterUnregister(t *testing.T) {
	hub := startHub(t)
	a := newMockClient("alice")

	hub.Register(a)
	hub.Join(a, "conv:c1")
	assert.Equal(t, []string{"alice"}, hub.PresentUsers("conv:c1"))

	hub.Unregister(a)
	assert.Empty(t, hub.PresentUsers("conv:c1"))
	assert.True(t, a.closed.Load(), "unregister must close the client")
}

func TestHub_UnregisterTwiceIsSafe(t *testing.T) {
	hub := startHub(t)
	a := newMockClient("alice")

	hub.Register(a)
	hub.Unregister(a)
	hub.Unregister(a)
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	hub := startHub(t)
	a := newMockClient("alice")

	hub.Register(a)
	hub.Join(a, "conv:c1")
	hub.Join(a, "conv:c1")

	hub.Broadcast("conv:c1", models.NewEvent(models.EventMessageNew, nil), "")
	barrier(hub)

	assert.Len(t, a.drain(), 1, "double join must not duplicate delivery")
}

func TestHub_LeaveNeverJoinedIsNoOp(t *testing.T) {
	hub := startHub(t)
	a := newMockClient("alice")

	hub.Register(a)
	hub.Leave(a, "conv:never")
	assert.Empty(t, hub.PresentUsers("conv:never"))
}

func TestHub_JoinBeforeRegisterIsIgnored(t *testing.T) {
	hub := startHub(t)
	a := newMockClient("alice")

	hub.Join(a, "conv:c1")
	assert.Empty(t, hub.PresentUsers("conv:c1"))
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	hub := startHub(t)
	a := newMockClient("alice")
	b := newMockClient("bob")
	hub.Register(a)
	hub.Register(b)
	hub.Join(a, "conv:c1")
	hub.Join(b, "conv:c1")

	hub.Broadcast("conv:c1", models.NewEvent(models.EventMessageNew, nil), "alice")
	barrier(hub)

	assert.Empty(t, a.drain(), "sender must not receive its own fan-out")
	require.Len(t, b.drain(), 1)
}

func TestHub_BroadcastScopedToRoom(t *testing.T) {
	hub := startHub(t)
	a := newMockClient("alice")
	b := newMockClient("bob")
	hub.Register(a)
	hub.Register(b)
	hub.Join(a, "conv:c1")
	hub.Join(b, "conv:c2")

	hub.Broadcast("conv:c1", models.NewEvent(models.EventTyping, nil), "")
	barrier(hub)

	assert.Len(t, a.drain(), 1)
	assert.Empty(t, b.drain())
}

func TestHub_OrderingPerRoomPerConnection(t *testing.T) {
	hub := startHub(t)
	a := newMockClient("alice")
	hub.Register(a)
	hub.Join(a, "conv:c1")

	for _, name := range []string{"e1", "e2", "e3"} {
		hub.Broadcast("conv:c1", models.Event{Name: name}, "")
	}
	barrier(hub)

	got := a.drain()
	require.Len(t, got, 3)
	assert.Equal(t, "e1", got[0].Name)
	assert.Equal(t, "e2", got[1].Name)
	assert.Equal(t, "e3", got[2].Name)
}

func TestHub_PresenceDeduplicatesConnectionsOfSameUser(t *testing.T) {
	hub := startHub(t)
	phone := newMockClient("alice")
	tablet := newMockClient("alice")
	hub.Register(phone)
	hub.Register(tablet)
	hub.Join(phone, "conv:c1")
	hub.Join(tablet, "conv:c1")

	assert.Equal(t, []string{"alice"}, hub.PresentUsers("conv:c1"))
}

func TestHub_SlowConsumerIsDropped(t *testing.T) {
	hub := startHub(t)
	slow := newMockClient("alice")
	hub.Register(slow)
	hub.Join(slow, "conv:c1")

	// The mock buffer holds 8 events; the ninth cannot be queued.
	for i := 0; i < 9; i++ {
		hub.Broadcast("conv:c1", models.Event{Name: models.EventMessageNew}, "")
	}

	assert.Empty(t, hub.PresentUsers("conv:c1"), "stalled connection must be dropped, not block the room")
	assert.True(t, slow.closed.Load())
}
