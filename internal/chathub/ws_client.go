package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"roadassist/backend/internal/chat"
	"roadassist/backend/internal/config"
	"roadassist/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// ChatAPI is the slice of the chat service a connection needs. chat.Service
// implements it; tests substitute a mock.
type ChatAPI interface {
	Send(ctx context.Context, conversationID, authorID, text, attachment, tempID string) (*models.Message, error)
	History(ctx context.Context, conversationID, userID string, before *time.Time, limit int) ([]models.Message, error)
	Ensure(ctx context.Context, callerID, peerUserID, requestID string) (string, error)
	CanAccess(ctx context.Context, conversationID, userID string) error
	ConversationRoomsFor(ctx context.Context, userID string) ([]string, error)
}

// WebSocketClient is one authenticated websocket connection.
type WebSocketClient struct {
	hub      *Hub
	svc      ChatAPI
	conn     *websocket.Conn
	userID   string
	operator bool
	send     chan models.Event
	quit     chan struct{}
	once     sync.Once
}

func NewWebSocketClient(hub *Hub, svc ChatAPI, conn *websocket.Conn, userID string, operator bool) *WebSocketClient {
	return &WebSocketClient{
		hub:      hub,
		svc:      svc,
		conn:     conn,
		userID:   userID,
		operator: operator,
		send:     make(chan models.Event, 256),
		quit:     make(chan struct{}),
	}
}

func (c *WebSocketClient) UserID() string { return c.userID }

func (c *WebSocketClient) SendChannel() chan<- models.Event { return c.send }

// Close stops the write pump. The send channel is left open so a late
// enqueue from the read loop can never panic; it just goes nowhere.
func (c *WebSocketClient) Close() {
	c.once.Do(func() { close(c.quit) })
}

// Run registers the connection, joins its initial rooms and starts the
// pumps. Initial rooms: the private user room, the operator room for
// operator connections, and one room per conversation the user belongs to
// right now. Later membership changes need explicit join/leave events.
func (c *WebSocketClient) Run() {
	c.hub.Register(c)
	c.hub.Join(c, models.UserRoom(c.userID))
	if c.operator {
		c.hub.Join(c, models.OperatorRoom)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.RealtimeCallTimeout)
	rooms, err := c.svc.ConversationRoomsFor(ctx, c.userID)
	cancel()
	if err != nil {
		log.Printf("WARN: could not load conversation rooms for %s: %v", c.userID, err)
	}
	for _, room := range rooms {
		c.hub.Join(c, room)
	}

	go c.writePump()
	go c.readPump()
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading from %s: %v", c.userID, err)
			}
			break
		}

		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("bad frame from %s: %v", c.userID, err)
			continue
		}
		c.handleEvent(ev)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.quit:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleEvent dispatches one inbound event. Every request-style event is
// answered on this connection via an ack; a failed operation never
// terminates the connection.
func (c *WebSocketClient) handleEvent(ev models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), config.RealtimeCallTimeout)
	defer cancel()

	switch ev.Name {
	case models.EventJoinConversation, models.EventJoinConvAlias:
		id := models.DecodeConversationRef(ev.Data)
		if err := c.svc.CanAccess(ctx, id, c.userID); err != nil {
			c.ack(ev, nil, err)
			return
		}
		c.hub.Join(c, models.ConversationRoom(id))
		c.ack(ev, models.ConversationRef{ConversationID: id}, nil)

	case models.EventLeaveConversation, models.EventLeaveConvAlias:
		id := models.DecodeConversationRef(ev.Data)
		c.hub.Leave(c, models.ConversationRoom(id))
		c.ack(ev, models.ConversationRef{ConversationID: id}, nil)

	case models.EventTyping:
		var p models.TypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.ConversationID == "" {
			return
		}
		// Fire and forget: relayed verbatim to the room, sender excluded.
		c.hub.Broadcast(
			models.ConversationRoom(p.ConversationID),
			models.NewEvent(models.EventTyping, models.TypingPayload{UserID: c.userID, IsTyping: p.IsTyping}),
			c.userID,
		)

	case models.EventNewConversation:
		var p models.NewConversationPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.ack(ev, nil, chat.ErrValidation)
			return
		}
		peer := ""
		for _, id := range p.Participants {
			if id != c.userID {
				peer = id
				break
			}
		}
		id, err := c.svc.Ensure(ctx, c.userID, peer, p.RequestID)
		if err != nil {
			c.ack(ev, nil, err)
			return
		}
		c.hub.Join(c, models.ConversationRoom(id))
		c.ack(ev, models.ConversationRef{ConversationID: id}, nil)

	case models.EventGetMessages:
		id := models.DecodeConversationRef(ev.Data)
		msgs, err := c.svc.History(ctx, id, c.userID, nil, config.HistoryLimit)
		if err != nil {
			c.ack(ev, nil, err)
			return
		}
		c.ack(ev, msgs, nil)

	case models.EventSendMessage, models.EventSendMessageAlias:
		var p models.SendMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.ack(ev, nil, chat.ErrValidation)
			return
		}
		msg, err := c.svc.Send(ctx, p.ConversationID, c.userID, p.Text, p.Attachment, p.TempID)
		if err != nil {
			c.ack(ev, nil, err)
			return
		}
		c.ack(ev, msg, nil)

	default:
		log.Printf("unknown event %q from %s", ev.Name, c.userID)
	}
}

// ack answers the request that initiated an operation. Successful
// operations without an ack id have nothing to correlate and are skipped;
// failures are reported regardless so the client can mark its optimistic
// state as failed.
func (c *WebSocketClient) ack(req models.Event, result any, err error) {
	if err == nil && req.AckID == "" {
		return
	}
	payload := models.AckPayload{OK: err == nil}
	if err != nil {
		payload.Code = ackCode(err)
		payload.Message = err.Error()
	}
	if result != nil {
		payload.Result, _ = json.Marshal(result)
	}
	data, _ := json.Marshal(payload)
	c.enqueue(models.Event{Name: models.EventAck, Data: data, AckID: req.AckID})
}

// enqueue queues an event for this connection without ever blocking the
// read loop; the hub's drop-on-full policy handles the rest.
func (c *WebSocketClient) enqueue(ev models.Event) {
	select {
	case c.send <- ev:
	default:
	}
}

func ackCode(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return "not_found"
	case errors.Is(err, chat.ErrValidation):
		return "invalid"
	default:
		return "internal"
	}
}
