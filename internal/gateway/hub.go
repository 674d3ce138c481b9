package gateway

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"mingle-gateway/internal/bus"
	"mingle-gateway/internal/chat"
	"mingle-gateway/internal/events"
	"mingle-gateway/internal/presence"
)

// ChatAPI is the slice of the message pipeline the connection layer
// drives. Narrowed to an interface so handler tests can fake it.
type ChatAPI interface {
	Send(ctx context.Context, sender primitive.ObjectID, in chat.SendInput) (chat.SendResult, error)
	AuthorizeJoin(ctx context.Context, user, convID primitive.ObjectID) error
	MarkLatestRead(ctx context.Context, convID, user primitive.ObjectID) error
}

// Hub is the in-process room registry: it maps rooms to the local
// connections that joined them and forwards bus events to their sockets.
// Cross-process reach comes from the bus, not from the hub.
type Hub struct {
	bus      bus.Bus
	presence *presence.Tracker
	chat     ChatAPI
	logger   *Logger

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

func NewHub(b bus.Bus, tracker *presence.Tracker, chatAPI ChatAPI, logger *Logger) *Hub {
	return &Hub{
		bus:        b,
		presence:   tracker,
		chat:       chatAPI,
		logger:     logger,
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		stopChan:   make(chan struct{}),
	}
}

// Run subscribes the hub to the bus and processes connection lifecycle
// events until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.bus.Subscribe(ctx, h.dispatch); err != nil {
			h.logger.logger.Error("bus subscription ended", zap.Error(err))
		}
	}()

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case <-ctx.Done():
			h.shutdown()
			return
		case <-h.stopChan:
			h.shutdown()
			return
		}
	}
}

// Stop shuts the hub down outside of context cancellation.
func (h *Hub) Stop() {
	close(h.stopChan)
}

func (h *Hub) handleRegister(client *Client) {
	// Every connection lands in its own personal notification room.
	h.JoinRoom(client, events.UserRoom(client.session.Identity.ID))

	if h.presence != nil {
		if err := h.presence.MarkOnline(context.Background(), client.session.Identity.ID, client.session.ClientID); err != nil {
			h.logger.Warn("presence mark online failed", client.session.Identity.ID, client.session.ClientID, zap.Error(err))
		}
	}

	h.logger.Info("client connected", client.session.Identity.ID, client.session.ClientID)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	removed := false
	for room, members := range h.rooms {
		if _, ok := members[client]; ok {
			delete(members, client)
			removed = true
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()

	if !removed {
		return
	}

	close(client.send)
	client.conn.Close()

	if h.presence != nil {
		if err := h.presence.Forget(context.Background(), client.session.Identity.ID, client.session.ClientID); err != nil {
			h.logger.Warn("presence forget failed", client.session.Identity.ID, client.session.ClientID, zap.Error(err))
		}
	}

	h.logger.Info("client disconnected", client.session.Identity.ID, client.session.ClientID)
}

// JoinRoom adds the connection to a room. Idempotent; repeated joins are
// harmless. Authorization happens before this call, never inside it.
func (h *Hub) JoinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
}

// InRoom reports current local membership.
func (h *Hub) InRoom(client *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][client]
	return ok
}

// dispatch pushes a bus event to every local member of the room. Slow
// consumers are dropped rather than allowed to stall the fan-out.
func (h *Hub) dispatch(room string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("client send buffer full", client.session.Identity.ID, client.session.ClientID,
				zap.String("room", room))
		}
	}
}

func (h *Hub) shutdown() {
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[*Client]struct{})
	for _, members := range h.rooms {
		for client := range members {
			if _, ok := seen[client]; ok {
				continue
			}
			seen[client] = struct{}{}
			close(client.send)
			client.conn.Close()
		}
	}
	h.rooms = make(map[string]map[*Client]struct{})
}
