package chathub

import (
	"sync/atomic"

	"roadassist/backend/internal/models"
)

// mockClient is an in-process Client for hub tests.
type mockClient struct {
	userID string
	recv   chan models.Event
	closed atomic.Bool
}

func newMockClient(userID string) *mockClient {
	return &mockClient{
		userID: userID,
		recv:   make(chan models.Event, 8),
	}
}

func (c *mockClient) UserID() string                   { return c.userID }
func (c *mockClient) SendChannel() chan<- models.Event { return c.recv }
func (c *mockClient) Close()                           { c.closed.Store(true) }

// drain returns every event currently queued for the client.
func (c *mockClient) drain() []models.Event {
	var out []models.Event
	for {
		select {
		case ev := <-c.recv:
			out = append(out, ev)
		default:
			return out
		}
	}
}
