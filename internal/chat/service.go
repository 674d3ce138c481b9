package chat

import (
	"context"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"mingle-gateway/internal/bus"
	"mingle-gateway/internal/domain"
	"mingle-gateway/internal/events"
	"mingle-gateway/internal/store"
	apperrors "mingle-gateway/pkg/errors"
)

// Service is the message pipeline: it resolves a send request to a
// conversation, authorizes the sender, persists the message, updates the
// conversation summary and publishes the delivery event on the bus.
type Service struct {
	convs    store.ConversationStore
	msgs     store.MessageStore
	profiles store.ProfileStore
	bus      bus.Bus
	log      *zap.Logger
}

func NewService(convs store.ConversationStore, msgs store.MessageStore, profiles store.ProfileStore, b bus.Bus, log *zap.Logger) *Service {
	return &Service{convs: convs, msgs: msgs, profiles: profiles, bus: b, log: log}
}

// SendInput is the raw send-message payload. Exactly one of
// ConversationID and ReceiverID must be set; an explicit conversation id
// wins when both are present.
type SendInput struct {
	ConversationID string        `json:"conversationId,omitempty"`
	ReceiverID     string        `json:"receiverId,omitempty"`
	Content        string        `json:"content,omitempty"`
	Media          *domain.Media `json:"media,omitempty"`
}

type SendResult struct {
	ConversationID primitive.ObjectID `json:"conversationId"`
	MessageID      primitive.ObjectID `json:"messageId"`

	// DirectResolve is set when the conversation was resolved through a
	// receiver id; the caller joins the sender's connection to the room
	// as a side effect of first contact.
	DirectResolve bool `json:"-"`
}

// sendTarget is the tagged variant a SendInput resolves to before the
// rest of the pipeline runs.
type sendTarget interface {
	sendTarget()
}

type existingConversation struct {
	ID primitive.ObjectID
}

type newDirect struct {
	Receiver primitive.ObjectID
}

func (existingConversation) sendTarget() {}
func (newDirect) sendTarget()            {}

func (in SendInput) target() (sendTarget, error) {
	switch {
	case in.ConversationID != "":
		id, err := primitive.ObjectIDFromHex(in.ConversationID)
		if err != nil {
			return nil, apperrors.ErrInvalidInput
		}
		return existingConversation{ID: id}, nil
	case in.ReceiverID != "":
		id, err := primitive.ObjectIDFromHex(in.ReceiverID)
		if err != nil {
			return nil, apperrors.ErrInvalidInput
		}
		return newDirect{Receiver: id}, nil
	default:
		return nil, apperrors.ErrInvalidInput
	}
}

// NewMessagePayload is the delivery event pushed to room subscribers.
type NewMessagePayload struct {
	ID        primitive.ObjectID `json:"_id"`
	ChatID    primitive.ObjectID `json:"chatId"`
	Sender    domain.Profile     `json:"sender"`
	Content   string             `json:"content,omitempty"`
	Media     *domain.Media      `json:"media,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Send runs the pipeline. Any failure before the persist step aborts the
// whole send; a bus failure after the persist step is logged and
// swallowed, so a message is never broadcast unless it exists.
func (s *Service) Send(ctx context.Context, sender primitive.ObjectID, in SendInput) (SendResult, error) {
	target, err := in.target()
	if err != nil {
		return SendResult{}, err
	}

	conv, direct, err := s.resolve(ctx, sender, target)
	if err != nil {
		return SendResult{}, err
	}

	if err := validatePayload(in); err != nil {
		return SendResult{}, err
	}

	msg := &domain.Message{
		ChatID:    conv.ID,
		SenderID:  sender,
		Content:   in.Content,
		Media:     in.Media,
		ReadBy:    []primitive.ObjectID{sender},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.msgs.Create(ctx, msg); err != nil {
		return SendResult{}, err
	}

	if err := s.convs.SetLastMessage(ctx, conv.ID, msg.ID, msg.CreatedAt); err != nil {
		return SendResult{}, err
	}

	s.publishNewMessage(ctx, conv.ID, msg)

	return SendResult{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		DirectResolve:  direct,
	}, nil
}

func (s *Service) resolve(ctx context.Context, sender primitive.ObjectID, target sendTarget) (domain.Conversation, bool, error) {
	switch t := target.(type) {
	case existingConversation:
		conv, err := s.convs.GetByID(ctx, t.ID)
		if err != nil {
			return domain.Conversation{}, false, err
		}
		if !conv.HasParticipant(sender) {
			return domain.Conversation{}, false, apperrors.ErrForbidden
		}
		return conv, false, nil

	case newDirect:
		if t.Receiver == sender {
			return domain.Conversation{}, false, apperrors.ErrInvalidInput
		}
		conv, _, err := s.convs.FindOrCreateDirect(ctx, sender, t.Receiver)
		if err != nil {
			return domain.Conversation{}, false, err
		}
		return conv, true, nil
	}
	return domain.Conversation{}, false, apperrors.ErrInvalidInput
}

func validatePayload(in SendInput) error {
	if in.Content == "" && in.Media == nil {
		return apperrors.ErrInvalidInput
	}
	if utf8.RuneCountInString(in.Content) > domain.MaxContentRunes {
		return apperrors.ErrInvalidInput
	}
	if in.Media != nil && !in.Media.Valid() {
		return apperrors.ErrInvalidInput
	}
	return nil
}

func (s *Service) publishNewMessage(ctx context.Context, convID primitive.ObjectID, msg *domain.Message) {
	profile, err := s.profiles.GetProfile(ctx, msg.SenderID)
	if err != nil {
		profile = domain.Profile{ID: msg.SenderID}
	}

	frame := events.Marshal(events.NewMessage, NewMessagePayload{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		Sender:    profile,
		Content:   msg.Content,
		Media:     msg.Media,
		CreatedAt: msg.CreatedAt,
	})

	if err := s.bus.Publish(ctx, events.ConversationRoom(convID), frame); err != nil {
		s.log.Warn("bus publish failed, message persisted but not broadcast",
			zap.String("conversation_id", convID.Hex()),
			zap.String("message_id", msg.ID.Hex()),
			zap.Error(err))
	}
}

// AuthorizeJoin re-checks room membership against persisted participant
// state. Called on every join; the decision is never cached across
// reconnects.
func (s *Service) AuthorizeJoin(ctx context.Context, user, convID primitive.ObjectID) error {
	conv, err := s.convs.GetByID(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(user) {
		return apperrors.ErrForbidden
	}
	return nil
}

// MarkLatestRead adds the identity to the most recent message's read-set.
// Best-effort side effect of joining a room.
func (s *Service) MarkLatestRead(ctx context.Context, convID, user primitive.ObjectID) error {
	return s.msgs.MarkLatestRead(ctx, convID, user)
}

// History returns persisted messages for recovery after missed
// broadcasts. Replay is served from the store, never from the bus.
func (s *Service) History(ctx context.Context, user, convID primitive.ObjectID, limit int, before time.Time) ([]domain.Message, error) {
	if err := s.AuthorizeJoin(ctx, user, convID); err != nil {
		return nil, err
	}
	return s.msgs.ListByConversation(ctx, convID, user, limit, before)
}

// React adds a reaction after re-checking participation.
func (s *Service) React(ctx context.Context, user, msgID primitive.ObjectID, emoji string) error {
	if emoji == "" {
		return apperrors.ErrInvalidInput
	}
	msg, err := s.msgs.GetByID(ctx, msgID)
	if err != nil {
		return err
	}
	if err := s.AuthorizeJoin(ctx, user, msg.ChatID); err != nil {
		return err
	}
	return s.msgs.AddReaction(ctx, msgID, user, emoji)
}

// DeleteForMe soft-deletes a message for the calling identity only.
func (s *Service) DeleteForMe(ctx context.Context, user, msgID primitive.ObjectID) error {
	msg, err := s.msgs.GetByID(ctx, msgID)
	if err != nil {
		return err
	}
	if err := s.AuthorizeJoin(ctx, user, msg.ChatID); err != nil {
		return err
	}
	return s.msgs.DeleteForUser(ctx, msgID, user)
}

// DeleteForEveryone marks a message deleted for all participants.
// Sender-only; enforced in the store's update filter.
func (s *Service) DeleteForEveryone(ctx context.Context, user, msgID primitive.ObjectID) error {
	return s.msgs.DeleteForEveryone(ctx, msgID, user)
}
