package models

import "encoding/json"

// Wire event names for the bidirectional realtime channel. Several
// client-to-server events have a legacy alias kept for older app builds.
const (
	EventJoinConversation  = "conversation:join"
	EventJoinConvAlias     = "join:conv"
	EventLeaveConversation = "conversation:leave"
	EventLeaveConvAlias    = "leave:conv"
	EventTyping            = "typing"
	EventNewConversation   = "newConversation"
	EventGetMessages       = "getMessages"
	EventSendMessage       = "message:send"
	EventSendMessageAlias  = "newMessage"

	EventMessageNew          = "message:new"
	EventMessages            = "messages"
	EventConversationCreated = "conversation:created"
	EventConversationDeleted = "conversation:deleted"
	EventAssistCreated       = "assist:created"
	EventAck                 = "ack"
)

// Event is the envelope every frame on the realtime channel uses in both
// directions. AckID correlates a client request with its reply.
type Event struct {
	Name  string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID string          `json:"ackId,omitempty"`
}

// NewEvent marshals payload into an envelope. Marshal failures cannot
// happen for the payload types used here, so they reduce to an empty body.
func NewEvent(name string, payload any) Event {
	data, _ := json.Marshal(payload)
	return Event{Name: name, Data: data}
}

// AckPayload is the reply to a client-initiated request. A failed
// operation answers the one request that caused it; it never terminates
// the connection.
type AckPayload struct {
	OK      bool            `json:"ok"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// TypingPayload is relayed verbatim to the conversation room, excluding
// the sender.
type TypingPayload struct {
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}

// SendMessagePayload is the client request to send a message.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
	Attachment     string `json:"attachment,omitempty"`
	TempID         string `json:"tempId,omitempty"`
}

// NewConversationPayload asks the server to create (or find) a
// conversation.
type NewConversationPayload struct {
	Type         string   `json:"type,omitempty"`
	Participants []string `json:"participants"`
	Name         string   `json:"name,omitempty"`
	RequestID    string   `json:"requestId,omitempty"`
}

// ConversationRef identifies a conversation in join/leave/history
// requests. Older app builds send the id as a bare JSON string, newer ones
// wrap it in an object; DecodeConversationRef accepts both.
type ConversationRef struct {
	ConversationID string `json:"conversationId"`
}

// DecodeConversationRef extracts a conversation id from either encoding.
func DecodeConversationRef(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var ref ConversationRef
	if err := json.Unmarshal(data, &ref); err == nil {
		return ref.ConversationID
	}
	return ""
}

// ConversationDeletedPayload is the room teardown notice. Deletion itself
// is an external concern; the core only broadcasts the event.
type ConversationDeletedPayload struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
}

// RoomEnvelope carries a room broadcast between server instances over the
// pub/sub bridge. Origin identifies the publishing instance so it can skip
// its own echoes.
type RoomEnvelope struct {
	Origin  string `json:"origin"`
	Room    string `json:"room"`
	Exclude string `json:"exclude,omitempty"`
	Event   Event  `json:"event"`
}

// Room naming. Every connected user sits in their private user room;
// conversation rooms carry the message fan-out; the operator room carries
// assist broadcasts.
const OperatorRoom = "operators"

func UserRoom(userID string) string { return "user:" + userID }

func ConversationRoom(conversationID string) string { return "conv:" + conversationID }
