package chathub

import "roadassist/backend/internal/models"

// Client is one live connection from the hub's point of view. The
// websocket client implements it; tests use an in-process fake.
type Client interface {
	// UserID returns the authenticated user behind the connection.
	UserID() string
	// SendChannel is where the hub queues outbound events. Per-connection
	// FIFO; the hub drops the connection rather than block on it.
	SendChannel() chan<- models.Event
	// Close releases the connection's resources. Called by the hub
	// exactly once, on unregister.
	Close()
}
