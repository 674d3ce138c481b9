package notify

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"mingle-gateway/internal/bus"
	"mingle-gateway/internal/domain"
	"mingle-gateway/internal/events"
	"mingle-gateway/internal/store"
	apperrors "mingle-gateway/pkg/errors"
)

// Service persists a notification and delivers it to the owner's
// personal room. Callers are responsible for not invoking it twice for
// the same logical event; no dedup key exists here.
type Service struct {
	store store.NotificationStore
	bus   bus.Bus
	log   *zap.Logger
}

func NewService(s store.NotificationStore, b bus.Bus, log *zap.Logger) *Service {
	return &Service{store: s, bus: b, log: log}
}

// Payload is the notification event pushed to the personal room.
type Payload struct {
	ID             primitive.ObjectID  `json:"_id"`
	Type           domain.NotificationType `json:"type"`
	Title          string              `json:"title"`
	Message        string              `json:"message"`
	RelatedUser    *primitive.ObjectID `json:"relatedUser,omitempty"`
	RelatedPost    *primitive.ObjectID `json:"relatedPost,omitempty"`
	RelatedComment *primitive.ObjectID `json:"relatedComment,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

func (s *Service) Notify(ctx context.Context, owner primitive.ObjectID, typ domain.NotificationType, title, message string, refs domain.NotificationRefs) (domain.Notification, error) {
	if !typ.Valid() {
		return domain.Notification{}, apperrors.ErrInvalidInput
	}
	if title == "" && message == "" {
		return domain.Notification{}, apperrors.ErrInvalidInput
	}

	n := domain.Notification{
		UserID:         owner,
		Type:           typ,
		Title:          title,
		Message:        message,
		RelatedUser:    refs.RelatedUser,
		RelatedPost:    refs.RelatedPost,
		RelatedComment: refs.RelatedComment,
	}
	if err := s.store.Create(ctx, &n); err != nil {
		return domain.Notification{}, err
	}

	frame := events.Marshal(events.Notification, Payload{
		ID:             n.ID,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		RelatedUser:    n.RelatedUser,
		RelatedPost:    n.RelatedPost,
		RelatedComment: n.RelatedComment,
		CreatedAt:      n.CreatedAt,
	})
	if err := s.bus.Publish(ctx, events.UserRoom(owner), frame); err != nil {
		s.log.Warn("bus publish failed, notification persisted but not delivered",
			zap.String("notification_id", n.ID.Hex()),
			zap.String("user_id", owner.Hex()),
			zap.Error(err))
	}

	return n, nil
}

// MarkRead flips the read flag on an owned notification.
func (s *Service) MarkRead(ctx context.Context, owner, id primitive.ObjectID) error {
	return s.store.MarkRead(ctx, id, owner)
}

// List pages through the owner's notifications, newest first.
func (s *Service) List(ctx context.Context, owner primitive.ObjectID, limit int, before time.Time) ([]domain.Notification, error) {
	return s.store.ListByUser(ctx, owner, limit, before)
}
