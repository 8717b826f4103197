// Package chat implements the conversation resolver and the message
// pipeline on top of the durable store, with fan-out and push delivery
// injected as narrow interfaces.
package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"roadassist/backend/internal/config"
	"roadassist/backend/internal/models"
	"roadassist/backend/internal/storage"
)

// NewConversationSentinel is the explicit-id placeholder mobile clients
// send while composing a message to a not-yet-created conversation.
const NewConversationSentinel = "new"

// attachmentPreview stands in for the message body in conversation
// previews and notifications when the message is image-only.
const attachmentPreview = "\U0001F4F7 Photo"

// Fanout delivers events to realtime rooms and answers presence queries.
// Implemented by the hub.
type Fanout interface {
	Broadcast(room string, ev models.Event, excludeUserID string)
	PresentUsers(room string) []string
}

// Push delivers a best-effort notification to a set of users. Failures
// are swallowed by the implementation, never surfaced here.
type Push interface {
	NotifyUsers(ctx context.Context, userIDs []string, title, body string, data map[string]string)
}

type Service struct {
	Store  storage.Storage
	Fanout Fanout
	Push   Push
}

func NewService(store storage.Storage, fanout Fanout, push Push) *Service {
	return &Service{Store: store, Fanout: fanout, Push: push}
}

// Resolve returns the canonical conversation id for the given hints, per
// the precedence: explicit id (unless the "new" sentinel), then the
// request's owning user as peer, then find-or-create by the peer pair.
// An empty return id with nil error means the hints were insufficient;
// the caller must not invent a conversation from that.
func (s *Service) Resolve(ctx context.Context, callerID, explicitID, peerUserID, requestID string) (string, error) {
	if explicitID != "" && explicitID != NewConversationSentinel {
		// No existence check here; downstream operations fail closed.
		return explicitID, nil
	}

	if peerUserID == "" && requestID != "" {
		req, err := s.Store.FindAssistRequest(ctx, requestID)
		if err != nil || req == nil {
			// Non-fatal: proceed without a peer.
			log.Printf("WARN: could not resolve request %s to a user: %v", requestID, err)
		} else {
			peerUserID = req.UserID
		}
	}

	if peerUserID == "" {
		return "", nil
	}

	conv, created, err := s.Store.FindOrCreateConversation(ctx, &models.Conversation{
		Participants: []string{callerID, peerUserID},
		RequestID:    requestID,
	})
	if err != nil {
		return "", err
	}
	if created {
		for _, id := range conv.Participants {
			s.Fanout.Broadcast(models.UserRoom(id), models.NewEvent(models.EventConversationCreated, conv), "")
		}
	}
	return conv.ID, nil
}

// Ensure is the REST/ws entry point for conversation creation. Unlike
// Resolve it treats "could not be resolved" as a validation error, since
// the caller explicitly asked for a conversation.
func (s *Service) Ensure(ctx context.Context, callerID, peerUserID, requestID string) (string, error) {
	id, err := s.Resolve(ctx, callerID, "", peerUserID, requestID)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%w: neither peerUserId nor a resolvable requestId given", ErrValidation)
	}
	return id, nil
}

// Send runs the full message pipeline: validate, authorize, persist,
// update denormalized state, fan out once to the room, push to absent
// participants. Denormalization failures never fail the send.
func (s *Service) Send(ctx context.Context, conversationID, authorID, text, attachment, tempID string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && attachment == "" {
		return nil, fmt.Errorf("%w: message needs text or an attachment", ErrValidation)
	}

	conv, err := s.Store.FindConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || !conv.HasParticipant(authorID) {
		return nil, ErrNotFound
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       authorID,
		Content:        text,
		Attachment:     attachment,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.Store.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}

	preview := text
	if preview == "" {
		preview = attachmentPreview
	}
	if err := s.Store.TouchLastMessage(ctx, conversationID, preview, msg.CreatedAt); err != nil {
		log.Printf("WARN: conversation %s preview update failed: %v", conversationID, err)
	}

	recipients := without(conv.Participants, authorID)
	if err := s.Store.IncrementUnread(ctx, conversationID, recipients); err != nil {
		log.Printf("WARN: conversation %s unread increment failed: %v", conversationID, err)
	}

	room := models.ConversationRoom(conversationID)
	s.Fanout.Broadcast(room, models.NewEvent(models.EventMessageNew, msg), authorID)
	s.notifyAbsent(ctx, room, recipients, preview, conversationID)

	msg.TempID = tempID
	return msg, nil
}

// notifyAbsent pushes to the recipients that did not get the realtime
// event because they have no live connection in the room.
func (s *Service) notifyAbsent(ctx context.Context, room string, recipients []string, body, conversationID string) {
	present := make(map[string]bool)
	for _, id := range s.Fanout.PresentUsers(room) {
		present[id] = true
	}
	var absent []string
	for _, id := range recipients {
		if !present[id] {
			absent = append(absent, id)
		}
	}
	if len(absent) == 0 {
		return
	}
	if len(body) > config.PushBodyLimit {
		body = body[:config.PushBodyLimit] + "…"
	}
	s.Push.NotifyUsers(ctx, absent, "New message", body, map[string]string{
		"conversationId": conversationID,
	})
}

// History returns the most recent window of messages oldest-first and, as
// a read-receipt approximation, zeroes the caller's unread counter.
func (s *Service) History(ctx context.Context, conversationID, userID string, before *time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > config.HistoryLimit {
		limit = config.HistoryLimit
	}

	conv, err := s.Store.FindConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || !conv.HasParticipant(userID) {
		return nil, ErrNotFound
	}

	msgs, err := s.Store.GetMessages(ctx, conversationID, before, limit)
	if err != nil {
		return nil, err
	}

	if err := s.Store.ResetUnread(ctx, conversationID, userID); err != nil {
		log.Printf("WARN: conversation %s unread reset for %s failed: %v", conversationID, userID, err)
	}
	return msgs, nil
}

// ListConversations returns the caller's conversations with unread
// counts, most recent activity first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	return s.Store.ListConversations(ctx, userID)
}

// CanAccess reports whether the user may operate on the conversation,
// with the same not-found semantics as the rest of the pipeline.
func (s *Service) CanAccess(ctx context.Context, conversationID, userID string) error {
	conv, err := s.Store.FindConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil || !conv.HasParticipant(userID) {
		return ErrNotFound
	}
	return nil
}

// ConversationRoomsFor computes the rooms a user is auto-joined to at
// connect time. Membership changes afterwards require an explicit join.
func (s *Service) ConversationRoomsFor(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.Store.ConversationIDsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	rooms := make([]string, 0, len(ids))
	for _, id := range ids {
		rooms = append(rooms, models.ConversationRoom(id))
	}
	return rooms, nil
}

// NotifyConversationDeleted broadcasts the room teardown notice. Deleting
// the conversation itself is an external concern.
func (s *Service) NotifyConversationDeleted(conversationID string) {
	s.Fanout.Broadcast(
		models.ConversationRoom(conversationID),
		models.NewEvent(models.EventConversationDeleted, models.ConversationDeletedPayload{
			ID:             conversationID,
			ConversationID: conversationID,
		}),
		"",
	)
}

func without(ids []string, exclude string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}
