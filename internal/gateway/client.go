package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"mingle-gateway/internal/auth"
	"mingle-gateway/internal/chat"
	"mingle-gateway/internal/events"
	apperrors "mingle-gateway/pkg/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Inbound event types.
const (
	EventJoinChat          = "join-chat"
	EventSendMessage       = "send-message"
	EventJoinNotifications = "join-notifications"
	EventPing              = "ping"
)

// Session ties a socket to a verified identity. ClientID distinguishes
// concurrent devices of the same user.
type Session struct {
	Identity auth.Identity
	ClientID string
}

// ClientEvent is the inbound envelope. The optional id is echoed back in
// the acknowledgement so callers can correlate responses.
type ClientEvent struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Ack is the per-event response frame. Failed events produce an ack and
// leave the connection open.
type Ack struct {
	ID             string `json:"id,omitempty"`
	Event          string `json:"event"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	MessageID      string `json:"messageId,omitempty"`
}

// Client is one websocket connection owned by the hub.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	session Session
}

func NewClient(hub *Hub, conn *websocket.Conn, session Session) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		session: session,
	}
}

// readPump drains inbound frames until the socket errors or closes. Each
// pong and each inbound frame refreshes the presence lease.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.refreshPresence()
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", c.session.Identity.ID, c.session.ClientID, zap.Error(err))
			}
			return
		}
		c.refreshPresence()
		c.handleEvent(raw)
	}
}

// writePump serializes all outbound writes on a single goroutine and
// keeps the connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

func (c *Client) handleEvent(raw []byte) {
	var ev ClientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.ack(Ack{Success: false, Error: "malformed event"})
		return
	}

	switch ev.Type {
	case EventJoinChat:
		c.handleJoinChat(ev)
	case EventSendMessage:
		c.handleSendMessage(ev)
	case EventJoinNotifications:
		c.hub.JoinRoom(c, events.UserRoom(c.session.Identity.ID))
		c.ack(Ack{ID: ev.ID, Event: ev.Type, Success: true})
	case EventPing:
		c.ack(Ack{ID: ev.ID, Event: ev.Type, Success: true})
	default:
		c.ack(Ack{ID: ev.ID, Event: ev.Type, Success: false, Error: "unknown event type"})
	}
}

// handleJoinChat re-authorizes against persisted participant state on
// every join, then subscribes the socket to the conversation room.
func (c *Client) handleJoinChat(ev ClientEvent) {
	var data struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil || data.ConversationID == "" {
		c.ack(Ack{ID: ev.ID, Event: ev.Type, Success: false, Error: "conversationId required"})
		return
	}
	convID, err := primitive.ObjectIDFromHex(data.ConversationID)
	if err != nil {
		c.ack(Ack{ID: ev.ID, Event: ev.Type, Success: false, Error: "invalid conversationId"})
		return
	}

	ctx := context.Background()
	if err := c.hub.chat.AuthorizeJoin(ctx, c.session.Identity.ID, convID); err != nil {
		c.ack(Ack{ID: ev.ID, Event: ev.Type, Success: false, Error: c.safeError("join chat", err)})
		return
	}

	c.hub.JoinRoom(c, events.ConversationRoom(convID))

	// Joining marks the latest message read; failure here does not undo
	// the join.
	if err := c.hub.chat.MarkLatestRead(ctx, convID, c.session.Identity.ID); err != nil {
		c.hub.logger.Warn("mark latest read failed", c.session.Identity.ID, c.session.ClientID,
			zap.String("conversation_id", convID.Hex()), zap.Error(err))
	}

	c.ack(Ack{ID: ev.ID, Event: ev.Type, Success: true, ConversationID: convID.Hex()})
}

func (c *Client) handleSendMessage(ev ClientEvent) {
	var in chat.SendInput
	if err := json.Unmarshal(ev.Data, &in); err != nil {
		c.ack(Ack{ID: ev.ID, Event: ev.Type, Success: false, Error: "malformed payload"})
		return
	}

	res, err := c.hub.chat.Send(context.Background(), c.session.Identity.ID, in)
	if err != nil {
		c.ack(Ack{ID: ev.ID, Event: ev.Type, Success: false, Error: c.safeError("send message", err)})
		return
	}

	// First contact through a receiver id: pull the sender's own socket
	// into the freshly resolved room so they see subsequent traffic.
	if res.DirectResolve {
		c.hub.JoinRoom(c, events.ConversationRoom(res.ConversationID))
	}

	c.ack(Ack{
		ID:             ev.ID,
		Event:          ev.Type,
		Success:        true,
		ConversationID: res.ConversationID.Hex(),
		MessageID:      res.MessageID.Hex(),
	})
}

func (c *Client) ack(a Ack) {
	payload, err := json.Marshal(a)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.hub.logger.Warn("ack dropped, send buffer full", c.session.Identity.ID, c.session.ClientID)
	}
}

// safeError maps an internal error to a client-visible message. Only
// taxonomy errors cross the wire; anything else is logged and masked.
func (c *Client) safeError(op string, err error) string {
	if apperrors.Safe(err) {
		return err.Error()
	}
	c.hub.logger.Error(op, c.session.Identity.ID, c.session.ClientID, err)
	return apperrors.ErrInternal.Error()
}

func (c *Client) refreshPresence() {
	if c.hub.presence == nil {
		return
	}
	if err := c.hub.presence.Refresh(context.Background(), c.session.Identity.ID); err != nil {
		c.hub.logger.Warn("presence refresh failed", c.session.Identity.ID, c.session.ClientID, zap.Error(err))
	}
}
