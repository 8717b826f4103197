package handler

import (
	"errors"
	"net/http"

	"roadassist/backend/internal/chat"
	"roadassist/backend/internal/chathub"

	"github.com/gin-gonic/gin"
)

// Handler carries the server context: the hub and the chat service are
// passed in explicitly, never reached through globals.
type Handler struct {
	Hub       *chathub.Hub
	Chat      *chat.Service
	JWTSecret string
}

func NewHandler(hub *chathub.Hub, svc *chat.Service, jwtSecret string) *Handler {
	return &Handler{Hub: hub, Chat: svc, JWTSecret: jwtSecret}
}

// respondError maps the service error taxonomy onto HTTP statuses.
// Not-found deliberately covers "exists but you are not a participant".
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": chat.ErrNotFound.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
