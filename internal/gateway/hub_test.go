package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"mingle-gateway/internal/auth"
	"mingle-gateway/internal/bus"
	"mingle-gateway/internal/chat"
	"mingle-gateway/internal/events"
	apperrors "mingle-gateway/pkg/errors"
)

type fakeChat struct {
	sendFn      func(ctx context.Context, sender primitive.ObjectID, in chat.SendInput) (chat.SendResult, error)
	authorizeFn func(ctx context.Context, user, convID primitive.ObjectID) error
	markErr     error
	marked      []primitive.ObjectID
}

func (f *fakeChat) Send(ctx context.Context, sender primitive.ObjectID, in chat.SendInput) (chat.SendResult, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, sender, in)
	}
	return chat.SendResult{}, apperrors.ErrInvalidInput
}

func (f *fakeChat) AuthorizeJoin(ctx context.Context, user, convID primitive.ObjectID) error {
	if f.authorizeFn != nil {
		return f.authorizeFn(ctx, user, convID)
	}
	return nil
}

func (f *fakeChat) MarkLatestRead(ctx context.Context, convID, user primitive.ObjectID) error {
	f.marked = append(f.marked, convID)
	return f.markErr
}

func newTestHub(t *testing.T, b bus.Bus) *Hub {
	t.Helper()
	return NewHub(b, nil, &fakeChat{}, NewLogger())
}

func newTestClient(hub *Hub) *Client {
	return NewClient(hub, nil, Session{
		Identity: auth.Identity{ID: primitive.NewObjectID()},
		ClientID: "test-client",
	})
}

func attachDispatch(t *testing.T, b *bus.MemoryBus, hubs ...*Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	for _, h := range hubs {
		h := h
		go func() { _ = b.Subscribe(ctx, h.dispatch) }()
	}
	time.Sleep(10 * time.Millisecond)
}

func recvFrame(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case payload := <-c.send:
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestHub_CrossInstanceFanOut(t *testing.T) {
	// Two hubs on one bus model two gateway processes behind a broker.
	shared := bus.NewMemoryBus()
	hubA := newTestHub(t, shared)
	hubB := newTestHub(t, shared)
	attachDispatch(t, shared, hubA, hubB)

	convID := primitive.NewObjectID()
	room := events.ConversationRoom(convID)

	onA := newTestClient(hubA)
	onB := newTestClient(hubB)
	bystander := newTestClient(hubB)
	hubA.JoinRoom(onA, room)
	hubB.JoinRoom(onB, room)
	hubB.JoinRoom(bystander, events.ConversationRoom(primitive.NewObjectID()))

	frame := events.Marshal(events.NewMessage, map[string]string{"content": "hello"})
	require.NoError(t, shared.Publish(context.Background(), room, frame))

	gotA := recvFrame(t, onA)
	gotB := recvFrame(t, onB)
	assert.Equal(t, frame, gotA)
	assert.Equal(t, gotA, gotB)

	select {
	case payload := <-bystander.send:
		t.Fatalf("bystander received frame: %s", payload)
	default:
	}
}

func TestHub_JoinRoomIsIdempotent(t *testing.T) {
	shared := bus.NewMemoryBus()
	hub := newTestHub(t, shared)
	attachDispatch(t, shared, hub)

	client := newTestClient(hub)
	room := "conv:abc"
	hub.JoinRoom(client, room)
	hub.JoinRoom(client, room)
	assert.True(t, hub.InRoom(client, room))

	require.NoError(t, shared.Publish(context.Background(), room, []byte("once")))
	assert.Equal(t, []byte("once"), recvFrame(t, client))

	select {
	case payload := <-client.send:
		t.Fatalf("duplicate delivery: %s", payload)
	default:
	}
}

func TestHub_SlowConsumerIsDroppedNotBlocked(t *testing.T) {
	shared := bus.NewMemoryBus()
	hub := newTestHub(t, shared)
	attachDispatch(t, shared, hub)

	client := newTestClient(hub)
	room := "conv:full"
	hub.JoinRoom(client, room)

	// Saturate the send buffer; further publishes must not block.
	for i := 0; i < cap(client.send); i++ {
		client.send <- []byte("fill")
	}

	done := make(chan struct{})
	go func() {
		_ = shared.Publish(context.Background(), room, []byte("overflow"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a saturated client")
	}
}

func decodeAck(t *testing.T, raw []byte) Ack {
	t.Helper()
	var a Ack
	require.NoError(t, json.Unmarshal(raw, &a))
	return a
}

func TestClient_JoinChatAuthorizedEveryTime(t *testing.T) {
	shared := bus.NewMemoryBus()
	hub := newTestHub(t, shared)
	convID := primitive.NewObjectID()

	allowed := map[primitive.ObjectID]bool{}
	fc := &fakeChat{
		authorizeFn: func(_ context.Context, user, _ primitive.ObjectID) error {
			if !allowed[user] {
				return apperrors.ErrForbidden
			}
			return nil
		},
	}
	hub.chat = fc

	client := newTestClient(hub)
	joinEvent, _ := json.Marshal(ClientEvent{
		ID:   "1",
		Type: EventJoinChat,
		Data: json.RawMessage(`{"conversationId":"` + convID.Hex() + `"}`),
	})

	client.handleEvent(joinEvent)
	ack := decodeAck(t, recvFrame(t, client))
	assert.False(t, ack.Success)
	assert.Equal(t, "1", ack.ID)
	assert.False(t, hub.InRoom(client, events.ConversationRoom(convID)))

	// Membership granted; the same join now succeeds and marks the
	// latest message read.
	allowed[client.session.Identity.ID] = true
	client.handleEvent(joinEvent)
	ack = decodeAck(t, recvFrame(t, client))
	assert.True(t, ack.Success)
	assert.Equal(t, convID.Hex(), ack.ConversationID)
	assert.True(t, hub.InRoom(client, events.ConversationRoom(convID)))
	assert.Equal(t, []primitive.ObjectID{convID}, fc.marked)
}

func TestClient_JoinChatSurvivesMarkReadFailure(t *testing.T) {
	shared := bus.NewMemoryBus()
	hub := newTestHub(t, shared)
	convID := primitive.NewObjectID()
	hub.chat = &fakeChat{markErr: apperrors.ErrInternal}

	client := newTestClient(hub)
	joinEvent, _ := json.Marshal(ClientEvent{
		Type: EventJoinChat,
		Data: json.RawMessage(`{"conversationId":"` + convID.Hex() + `"}`),
	})
	client.handleEvent(joinEvent)

	ack := decodeAck(t, recvFrame(t, client))
	assert.True(t, ack.Success)
	assert.True(t, hub.InRoom(client, events.ConversationRoom(convID)))
}

func TestClient_SendMessageAckCarriesIDs(t *testing.T) {
	shared := bus.NewMemoryBus()
	hub := newTestHub(t, shared)

	convID := primitive.NewObjectID()
	msgID := primitive.NewObjectID()
	hub.chat = &fakeChat{
		sendFn: func(_ context.Context, _ primitive.ObjectID, _ chat.SendInput) (chat.SendResult, error) {
			return chat.SendResult{ConversationID: convID, MessageID: msgID, DirectResolve: true}, nil
		},
	}

	client := newTestClient(hub)
	sendEvent, _ := json.Marshal(ClientEvent{
		ID:   "42",
		Type: EventSendMessage,
		Data: json.RawMessage(`{"receiverId":"` + primitive.NewObjectID().Hex() + `","content":"hi"}`),
	})
	client.handleEvent(sendEvent)

	ack := decodeAck(t, recvFrame(t, client))
	assert.True(t, ack.Success)
	assert.Equal(t, "42", ack.ID)
	assert.Equal(t, convID.Hex(), ack.ConversationID)
	assert.Equal(t, msgID.Hex(), ack.MessageID)

	// Direct resolution joins the sender's socket into the new room.
	assert.True(t, hub.InRoom(client, events.ConversationRoom(convID)))
}

func TestClient_ErrorAckDoesNotLeakInternals(t *testing.T) {
	shared := bus.NewMemoryBus()
	hub := newTestHub(t, shared)

	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"taxonomy error crosses the wire", apperrors.ErrForbidden, apperrors.ErrForbidden.Error()},
		{"internal error is masked", context.DeadlineExceeded, apperrors.ErrInternal.Error()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hub.chat = &fakeChat{
				sendFn: func(context.Context, primitive.ObjectID, chat.SendInput) (chat.SendResult, error) {
					return chat.SendResult{}, tc.err
				},
			}
			client := newTestClient(hub)
			sendEvent, _ := json.Marshal(ClientEvent{
				Type: EventSendMessage,
				Data: json.RawMessage(`{"content":"hi"}`),
			})
			client.handleEvent(sendEvent)

			ack := decodeAck(t, recvFrame(t, client))
			assert.False(t, ack.Success)
			assert.Equal(t, tc.wantMsg, ack.Error)
		})
	}
}

func TestClient_MalformedAndUnknownEvents(t *testing.T) {
	shared := bus.NewMemoryBus()
	hub := newTestHub(t, shared)
	client := newTestClient(hub)

	client.handleEvent([]byte("{not json"))
	ack := decodeAck(t, recvFrame(t, client))
	assert.False(t, ack.Success)

	unknown, _ := json.Marshal(ClientEvent{ID: "7", Type: "start-call"})
	client.handleEvent(unknown)
	ack = decodeAck(t, recvFrame(t, client))
	assert.False(t, ack.Success)
	assert.Equal(t, "7", ack.ID)

	// A failed event never tears down the connection: the next event
	// still gets handled.
	ping, _ := json.Marshal(ClientEvent{Type: EventPing})
	client.handleEvent(ping)
	ack = decodeAck(t, recvFrame(t, client))
	assert.True(t, ack.Success)
}

func TestClient_JoinNotificationsSubscribesPersonalRoom(t *testing.T) {
	shared := bus.NewMemoryBus()
	hub := newTestHub(t, shared)
	attachDispatch(t, shared, hub)

	client := newTestClient(hub)
	join, _ := json.Marshal(ClientEvent{Type: EventJoinNotifications})
	client.handleEvent(join)
	ack := decodeAck(t, recvFrame(t, client))
	require.True(t, ack.Success)

	frame := events.Marshal(events.Notification, map[string]string{"title": "New follower"})
	require.NoError(t, shared.Publish(context.Background(), events.UserRoom(client.session.Identity.ID), frame))
	assert.Equal(t, frame, recvFrame(t, client))
}
