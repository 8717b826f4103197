package handler

import (
	"net/http"
	"strconv"
	"time"

	"roadassist/backend/internal/config"

	"github.com/gin-gonic/gin"
)

// ListConversations returns the caller's conversations with unread
// counts, most recent activity first.
func (h *Handler) ListConversations(c *gin.Context) {
	ident := callerIdentity(c)
	convs, err := h.Chat.ListConversations(c.Request.Context(), ident.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetMessages serves an ascending page of history and, as a side effect,
// zeroes the caller's unread counter for the conversation.
func (h *Handler) GetMessages(c *gin.Context) {
	ident := callerIdentity(c)
	conversationID := c.Param("id")

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp"})
			return
		}
		before = &t
	}

	limit := config.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	msgs, err := h.Chat.History(c.Request.Context(), conversationID, ident.UserID, before, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type ensureRequest struct {
	PeerUserID string `json:"peerUserId"`
	RequestID  string `json:"requestId"`
}

// EnsureConversation finds or creates the canonical conversation for the
// caller and a peer (or the owner of an assistance request).
func (h *Handler) EnsureConversation(c *gin.Context) {
	ident := callerIdentity(c)

	var req ensureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	id, err := h.Chat.Ensure(c.Request.Context(), ident.UserID, req.PeerUserID, req.RequestID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

type sendMessageRequest struct {
	Text       string `json:"text"`
	Attachment string `json:"attachment"`
	TempID     string `json:"tempId"`
}

// SendMessage is the request/response fallback of the realtime send path;
// persisted state and fan-out behavior are identical on both.
func (h *Handler) SendMessage(c *gin.Context) {
	ident := callerIdentity(c)

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	msg, err := h.Chat.Send(c.Request.Context(), c.Param("id"), ident.UserID, req.Text, req.Attachment, req.TempID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// parseTimestamp accepts RFC 3339 or Unix milliseconds; mobile clients
// historically sent both.
func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
