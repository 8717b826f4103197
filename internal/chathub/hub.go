// Package chathub manages live connections and their room memberships,
// and multiplexes event fan-out over them. All hub state is owned by the
// Run goroutine and mutated only through channels; there are no locks and
// no package-level registries.
package chathub

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"roadassist/backend/internal/models"
	"roadassist/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type roomOp struct {
	client Client
	room   string
}

type roomEvent struct {
	room    string
	event   models.Event
	exclude string
	// bridged marks events that arrived over the pub/sub bridge; those
	// are delivered locally but never re-published.
	bridged bool
}

type presenceReq struct {
	room  string
	reply chan []string
}

// Hub is the realtime channel manager. One instance per process; handlers
// receive it explicitly, never through a global.
type Hub struct {
	instanceID string

	// store is used only for the cross-instance pub/sub bridge. Nil in
	// single-instance setups and in tests.
	store storage.Storage

	registerCh   chan Client
	unregisterCh chan Client
	joinCh       chan roomOp
	leaveCh      chan roomOp
	broadcastCh  chan roomEvent
	presenceCh   chan presenceReq
	publishCh    chan models.RoomEnvelope

	// clients maps each connection to the set of rooms it has joined.
	clients map[Client]map[string]struct{}
	rooms   map[string]map[Client]struct{}
}

func NewHub(store storage.Storage) *Hub {
	return &Hub{
		instanceID:   uuid.New().String(),
		store:        store,
		registerCh:   make(chan Client),
		unregisterCh: make(chan Client),
		joinCh:       make(chan roomOp),
		leaveCh:      make(chan roomOp),
		broadcastCh:  make(chan roomEvent),
		presenceCh:   make(chan presenceReq),
		publishCh:    make(chan models.RoomEnvelope, 256),
		clients:      make(map[Client]map[string]struct{}),
		rooms:        make(map[string]map[Client]struct{}),
	}
}

// Register adds a connection. Rooms are joined separately.
func (h *Hub) Register(c Client) { h.registerCh <- c }

// Unregister drops a connection and all its room memberships. Safe to
// call for a connection the hub already dropped.
func (h *Hub) Unregister(c Client) { h.unregisterCh <- c }

// Join adds the connection to a room. Joining twice is a no-op.
func (h *Hub) Join(c Client, room string) { h.joinCh <- roomOp{client: c, room: room} }

// Leave removes the connection from a room. Leaving a room never joined
// is a no-op.
func (h *Hub) Leave(c Client, room string) { h.leaveCh <- roomOp{client: c, room: room} }

// Broadcast delivers the event to every connection in the room except
// those of excludeUserID, and forwards it to other instances.
func (h *Hub) Broadcast(room string, ev models.Event, excludeUserID string) {
	h.broadcastCh <- roomEvent{room: room, event: ev, exclude: excludeUserID}
}

// PresentUsers returns the user ids with at least one live connection in
// the room.
func (h *Hub) PresentUsers(room string) []string {
	req := presenceReq{room: room, reply: make(chan []string, 1)}
	h.presenceCh <- req
	return <-req.reply
}

// Run owns all hub state. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	var bridge <-chan *redis.Message
	if h.store != nil {
		pubsub := h.store.SubscribeRoomEvents(ctx)
		defer pubsub.Close()
		bridge = pubsub.Channel()
		go h.publishLoop(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.registerCh:
			h.clients[c] = make(map[string]struct{})

		case c := <-h.unregisterCh:
			h.drop(c)

		case op := <-h.joinCh:
			rooms, ok := h.clients[op.client]
			if !ok {
				continue
			}
			rooms[op.room] = struct{}{}
			if h.rooms[op.room] == nil {
				h.rooms[op.room] = make(map[Client]struct{})
			}
			h.rooms[op.room][op.client] = struct{}{}

		case op := <-h.leaveCh:
			rooms, ok := h.clients[op.client]
			if !ok {
				continue
			}
			delete(rooms, op.room)
			h.removeFromRoom(op.client, op.room)

		case ev := <-h.broadcastCh:
			h.deliver(ev)
			if !ev.bridged && h.store != nil {
				env := models.RoomEnvelope{
					Origin:  h.instanceID,
					Room:    ev.room,
					Exclude: ev.exclude,
					Event:   ev.event,
				}
				select {
				case h.publishCh <- env:
				default:
					log.Printf("WARN: pub/sub bridge backlog full, dropping %s for room %s", ev.event.Name, ev.room)
				}
			}

		case m, ok := <-bridge:
			if !ok {
				bridge = nil
				continue
			}
			var env models.RoomEnvelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				log.Printf("WARN: bad bridge payload: %v", err)
				continue
			}
			if env.Origin == h.instanceID {
				continue
			}
			h.deliver(roomEvent{room: env.Room, event: env.Event, exclude: env.Exclude, bridged: true})

		case req := <-h.presenceCh:
			seen := make(map[string]struct{})
			var users []string
			for c := range h.rooms[req.room] {
				if _, dup := seen[c.UserID()]; dup {
					continue
				}
				seen[c.UserID()] = struct{}{}
				users = append(users, c.UserID())
			}
			req.reply <- users
		}
	}
}

// deliver fans the event out within this instance. A connection whose
// send queue is full is dropped rather than allowed to stall the room.
func (h *Hub) deliver(ev roomEvent) {
	for c := range h.rooms[ev.room] {
		if ev.exclude != "" && c.UserID() == ev.exclude {
			continue
		}
		select {
		case c.SendChannel() <- ev.event:
		default:
			log.Printf("WARN: dropping slow connection of user %s", c.UserID())
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c Client) {
	rooms, ok := h.clients[c]
	if !ok {
		return
	}
	for room := range rooms {
		h.removeFromRoom(c, room)
	}
	delete(h.clients, c)
	c.Close()
}

func (h *Hub) removeFromRoom(c Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// publishLoop forwards bridge envelopes to Redis sequentially so remote
// instances observe room events in emit order.
func (h *Hub) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-h.publishCh:
			pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := h.store.PublishRoomEvent(pubCtx, env); err != nil {
				log.Printf("WARN: pub/sub bridge publish failed: %v", err)
			}
			cancel()
		}
	}
}
