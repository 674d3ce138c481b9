package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"mingle-gateway/internal/domain"
)

// ConversationStore is the single source of truth for participant and
// admin state. Every administrative transition is a single-document
// conditional update; authorization lives in the update filter, never in
// a read-modify-write window.
type ConversationStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (domain.Conversation, error)

	// FindOrCreateDirect atomically finds or creates the unique 1:1
	// conversation for the pair, converging concurrent first-sends from
	// either side onto one document. The bool reports whether the
	// conversation was created by this call.
	FindOrCreateDirect(ctx context.Context, a, b primitive.ObjectID) (domain.Conversation, bool, error)

	CreateGroup(ctx context.Context, c *domain.Conversation) error
	SetLastMessage(ctx context.Context, convID, msgID primitive.ObjectID, at time.Time) error

	AddMembers(ctx context.Context, convID, actor primitive.ObjectID, members []primitive.ObjectID) error
	RemoveMembers(ctx context.Context, convID, actor primitive.ObjectID, members []primitive.ObjectID) error
	TransferAdmin(ctx context.Context, convID, actor, newAdmin primitive.ObjectID) error
	Leave(ctx context.Context, convID, actor primitive.ObjectID) error
	UpdateGroupInfo(ctx context.Context, convID, actor primitive.ObjectID, name *string, avatar *domain.Media) error
}

type MessageStore interface {
	Create(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id primitive.ObjectID) (domain.Message, error)

	// MarkLatestRead adds the identity to the most recent message's
	// read-set. Idempotent; a conversation without messages is a no-op.
	MarkLatestRead(ctx context.Context, convID, userID primitive.ObjectID) error

	AddReaction(ctx context.Context, msgID, userID primitive.ObjectID, emoji string) error
	DeleteForUser(ctx context.Context, msgID, userID primitive.ObjectID) error
	DeleteForEveryone(ctx context.Context, msgID, sender primitive.ObjectID) error
	ListByConversation(ctx context.Context, convID, viewer primitive.ObjectID, limit int, before time.Time) ([]domain.Message, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	MarkRead(ctx context.Context, id, owner primitive.ObjectID) error
	ListByUser(ctx context.Context, owner primitive.ObjectID, limit int, before time.Time) ([]domain.Notification, error)
}

// ProfileStore reads the minimal public projection of a user. The user
// collection is owned by the profile service.
type ProfileStore interface {
	GetProfile(ctx context.Context, id primitive.ObjectID) (domain.Profile, error)
}
