package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"mingle-gateway/internal/bus"
	"mingle-gateway/internal/domain"
	"mingle-gateway/internal/events"
	apperrors "mingle-gateway/pkg/errors"
)

type fakeNotificationStore struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*domain.Notification
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{items: make(map[primitive.ObjectID]*domain.Notification)}
}

func (f *fakeNotificationStore) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = primitive.NewObjectID()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	stored := *n
	f.items[n.ID] = &stored
	return nil
}

func (f *fakeNotificationStore) MarkRead(_ context.Context, id, owner primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok || n.UserID != owner {
		return apperrors.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (f *fakeNotificationStore) ListByUser(_ context.Context, owner primitive.ObjectID, limit int, before time.Time) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for _, n := range f.items {
		if n.UserID == owner {
			out = append(out, *n)
		}
	}
	return out, nil
}

type failingBus struct{}

func (failingBus) Publish(context.Context, string, []byte) error {
	return context.DeadlineExceeded
}

func (failingBus) Subscribe(ctx context.Context, _ bus.Handler) error {
	<-ctx.Done()
	return nil
}

func newNotifyFixture(t *testing.T) (*Service, *fakeNotificationStore, func() []string, func() [][]byte) {
	t.Helper()

	store := newFakeNotificationStore()
	b := bus.NewMemoryBus()
	svc := NewService(store, b, zap.NewNop())

	var mu sync.Mutex
	var rooms []string
	var payloads [][]byte

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = b.Subscribe(ctx, func(room string, payload []byte) {
			mu.Lock()
			defer mu.Unlock()
			rooms = append(rooms, room)
			payloads = append(payloads, payload)
		})
	}()
	<-ready
	time.Sleep(10 * time.Millisecond)

	getRooms := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), rooms...)
	}
	getPayloads := func() [][]byte {
		mu.Lock()
		defer mu.Unlock()
		return append([][]byte(nil), payloads...)
	}
	return svc, store, getRooms, getPayloads
}

func TestNotify_PersistsAndPublishesToPersonalRoom(t *testing.T) {
	svc, store, rooms, payloads := newNotifyFixture(t)
	owner := primitive.NewObjectID()
	follower := primitive.NewObjectID()

	n, err := svc.Notify(context.Background(), owner, domain.NotificationFollow, "New follower", "ayla started following you", domain.NotificationRefs{
		RelatedUser: &follower,
	})
	require.NoError(t, err)
	assert.False(t, n.ID.IsZero())
	assert.False(t, n.IsRead)

	require.Equal(t, []string{events.UserRoom(owner)}, rooms())

	var ev events.Event
	require.NoError(t, json.Unmarshal(payloads()[0], &ev))
	assert.Equal(t, events.Notification, ev.Name)

	var p Payload
	require.NoError(t, json.Unmarshal(ev.Data, &p))
	assert.Equal(t, n.ID, p.ID)
	assert.Equal(t, "New follower", p.Title)
	require.NotNil(t, p.RelatedUser)
	assert.Equal(t, follower, *p.RelatedUser)

	items, err := store.ListByUser(context.Background(), owner, 50, time.Time{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestNotify_Validation(t *testing.T) {
	svc, _, _, _ := newNotifyFixture(t)
	owner := primitive.NewObjectID()

	_, err := svc.Notify(context.Background(), owner, "poke", "title", "msg", domain.NotificationRefs{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Notify(context.Background(), owner, domain.NotificationLike, "", "", domain.NotificationRefs{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestNotify_BusFailureKeepsTheRecord(t *testing.T) {
	store := newFakeNotificationStore()
	svc := NewService(store, failingBus{}, zap.NewNop())
	owner := primitive.NewObjectID()

	n, err := svc.Notify(context.Background(), owner, domain.NotificationMessage, "New message", "", domain.NotificationRefs{})
	require.NoError(t, err)

	items, err := store.ListByUser(context.Background(), owner, 50, time.Time{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, n.ID, items[0].ID)
}

func TestMarkRead_OwnerScoped(t *testing.T) {
	svc, store, _, _ := newNotifyFixture(t)
	owner := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	n, err := svc.Notify(context.Background(), owner, domain.NotificationComment, "New comment", "", domain.NotificationRefs{})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MarkRead(context.Background(), stranger, n.ID), apperrors.ErrNotFound)
	require.NoError(t, svc.MarkRead(context.Background(), owner, n.ID))

	items, err := store.ListByUser(context.Background(), owner, 50, time.Time{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsRead)
}
