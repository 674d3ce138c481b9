package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"mingle-gateway/internal/bus"
	"mingle-gateway/internal/domain"
	apperrors "mingle-gateway/pkg/errors"
)

// fakeConvStore mirrors the conditional-update semantics of the real
// store: admin checks happen under the same lock as the mutation, and
// failures are classified the same way.
type fakeConvStore struct {
	mu     sync.Mutex
	convs  map[primitive.ObjectID]*domain.Conversation
	byPair map[string]primitive.ObjectID
}

func newFakeConvStore() *fakeConvStore {
	return &fakeConvStore{
		convs:  make(map[primitive.ObjectID]*domain.Conversation),
		byPair: make(map[string]primitive.ObjectID),
	}
}

func (f *fakeConvStore) GetByID(_ context.Context, id primitive.ObjectID) (domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return domain.Conversation{}, apperrors.ErrNotFound
	}
	return cloneConv(c), nil
}

func (f *fakeConvStore) FindOrCreateDirect(_ context.Context, a, b primitive.ObjectID) (domain.Conversation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := domain.DirectPairKey(a, b)
	if id, ok := f.byPair[key]; ok {
		return cloneConv(f.convs[id]), false, nil
	}

	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:           primitive.NewObjectID(),
		Participants: []primitive.ObjectID{a, b},
		PairKey:      key,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.convs[c.ID] = c
	f.byPair[key] = c.ID
	return cloneConv(c), true, nil
}

func (f *fakeConvStore) CreateGroup(_ context.Context, c *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.CreatedAt = now
	c.UpdatedAt = now
	stored := cloneConv(c)
	f.convs[c.ID] = &stored
	return nil
}

func (f *fakeConvStore) SetLastMessage(_ context.Context, convID, msgID primitive.ObjectID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[convID]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.LastMessageID = msgID
	c.LastMessageAt = at
	c.UpdatedAt = at
	return nil
}

func (f *fakeConvStore) AddMembers(_ context.Context, convID, actor primitive.ObjectID, members []primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.adminGroup(convID, actor)
	if err != nil {
		return err
	}
	for _, m := range members {
		if !c.HasParticipant(m) {
			c.Participants = append(c.Participants, m)
		}
	}
	return nil
}

func (f *fakeConvStore) RemoveMembers(_ context.Context, convID, actor primitive.ObjectID, members []primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.adminGroup(convID, actor)
	if err != nil {
		return err
	}
	drop := make(map[primitive.ObjectID]struct{}, len(members))
	for _, m := range members {
		drop[m] = struct{}{}
	}
	kept := c.Participants[:0]
	for _, p := range c.Participants {
		if _, ok := drop[p]; !ok {
			kept = append(kept, p)
		}
	}
	c.Participants = kept
	return nil
}

func (f *fakeConvStore) TransferAdmin(_ context.Context, convID, actor, newAdmin primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.adminGroup(convID, actor)
	if err != nil {
		return err
	}
	if !c.HasParticipant(newAdmin) {
		return apperrors.ErrInvalidInput
	}
	c.Admin = newAdmin
	return nil
}

func (f *fakeConvStore) Leave(_ context.Context, convID, actor primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[convID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if c.Admin == actor || !c.HasParticipant(actor) {
		return apperrors.ErrForbidden
	}
	kept := c.Participants[:0]
	for _, p := range c.Participants {
		if p != actor {
			kept = append(kept, p)
		}
	}
	c.Participants = kept
	return nil
}

func (f *fakeConvStore) UpdateGroupInfo(_ context.Context, convID, actor primitive.ObjectID, name *string, avatar *domain.Media) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.adminGroup(convID, actor)
	if err != nil {
		return err
	}
	if name != nil {
		c.GroupName = *name
	}
	if avatar != nil {
		av := *avatar
		c.GroupAvatar = &av
	}
	return nil
}

func (f *fakeConvStore) adminGroup(convID, actor primitive.ObjectID) (*domain.Conversation, error) {
	c, ok := f.convs[convID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if !c.IsGroup {
		return nil, apperrors.ErrInvalidInput
	}
	if c.Admin != actor {
		return nil, apperrors.ErrForbidden
	}
	return c, nil
}

func cloneConv(c *domain.Conversation) domain.Conversation {
	out := *c
	out.Participants = append([]primitive.ObjectID(nil), c.Participants...)
	return out
}

type fakeMsgStore struct {
	mu   sync.Mutex
	msgs map[primitive.ObjectID]*domain.Message
}

func newFakeMsgStore() *fakeMsgStore {
	return &fakeMsgStore{msgs: make(map[primitive.ObjectID]*domain.Message)}
}

func (f *fakeMsgStore) Create(_ context.Context, m *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = primitive.NewObjectID()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	stored := *m
	f.msgs[m.ID] = &stored
	return nil
}

func (f *fakeMsgStore) GetByID(_ context.Context, id primitive.ObjectID) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[id]
	if !ok {
		return domain.Message{}, apperrors.ErrNotFound
	}
	return *m, nil
}

func (f *fakeMsgStore) MarkLatestRead(_ context.Context, convID, userID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.Message
	for _, m := range f.msgs {
		if m.ChatID != convID {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil
	}
	for _, r := range latest.ReadBy {
		if r == userID {
			return nil
		}
	}
	latest.ReadBy = append(latest.ReadBy, userID)
	return nil
}

func (f *fakeMsgStore) AddReaction(_ context.Context, msgID, userID primitive.ObjectID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[msgID]
	if !ok || m.IsDeletedForEveryone {
		return apperrors.ErrNotFound
	}
	for _, r := range m.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			return nil
		}
	}
	m.Reactions = append(m.Reactions, domain.Reaction{UserID: userID, Emoji: emoji})
	return nil
}

func (f *fakeMsgStore) DeleteForUser(_ context.Context, msgID, userID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[msgID]
	if !ok {
		return apperrors.ErrNotFound
	}
	for _, d := range m.DeletedFor {
		if d == userID {
			return nil
		}
	}
	m.DeletedFor = append(m.DeletedFor, userID)
	return nil
}

func (f *fakeMsgStore) DeleteForEveryone(_ context.Context, msgID, sender primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[msgID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if m.SenderID != sender {
		return apperrors.ErrForbidden
	}
	m.IsDeletedForEveryone = true
	return nil
}

func (f *fakeMsgStore) ListByConversation(_ context.Context, convID, viewer primitive.ObjectID, limit int, before time.Time) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Message
	for _, m := range f.msgs {
		if m.ChatID != convID {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		hidden := false
		for _, d := range m.DeletedFor {
			if d == viewer {
				hidden = true
				break
			}
		}
		if hidden {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[primitive.ObjectID]domain.Profile
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[primitive.ObjectID]domain.Profile)}
}

func (f *fakeProfileStore) put(p domain.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.ID] = p
}

func (f *fakeProfileStore) GetProfile(_ context.Context, id primitive.ObjectID) (domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return domain.Profile{}, apperrors.ErrNotFound
	}
	return p, nil
}

// failingBus always errors on publish; delivery failures must never undo
// a persisted message.
type failingBus struct{}

func (failingBus) Publish(context.Context, string, []byte) error {
	return context.DeadlineExceeded
}

func (failingBus) Subscribe(ctx context.Context, _ bus.Handler) error {
	<-ctx.Done()
	return nil
}
