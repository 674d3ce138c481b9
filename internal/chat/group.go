package chat

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"mingle-gateway/internal/domain"
	"mingle-gateway/internal/store"
	apperrors "mingle-gateway/pkg/errors"
)

// GroupService enforces the admin-only transitions on a group
// conversation. Every transition is a single-document conditional update
// in the store; the admin check runs on every call and is never cached.
type GroupService struct {
	convs store.ConversationStore
	log   *zap.Logger
}

func NewGroupService(convs store.ConversationStore, log *zap.Logger) *GroupService {
	return &GroupService{convs: convs, log: log}
}

// CreateGroup makes the creator the admin and force-includes them in the
// participant set even when the caller omits themselves. At least two
// other distinct identities are required.
func (g *GroupService) CreateGroup(ctx context.Context, creator primitive.ObjectID, memberIDs []string, name string, avatar *domain.Media) (domain.Conversation, error) {
	if name == "" {
		return domain.Conversation{}, apperrors.ErrInvalidInput
	}
	if avatar != nil && !avatar.Valid() {
		return domain.Conversation{}, apperrors.ErrInvalidInput
	}

	others, err := parseDistinctIDs(memberIDs, creator)
	if err != nil {
		return domain.Conversation{}, err
	}
	if len(others) < 2 {
		return domain.Conversation{}, fmt.Errorf("%w: a group needs at least 2 other participants", apperrors.ErrInvalidInput)
	}

	conv := domain.Conversation{
		Participants: append([]primitive.ObjectID{creator}, others...),
		IsGroup:      true,
		GroupName:    name,
		GroupAvatar:  avatar,
		Admin:        creator,
	}
	if err := g.convs.CreateGroup(ctx, &conv); err != nil {
		return domain.Conversation{}, err
	}

	g.log.Info("group created",
		zap.String("conversation_id", conv.ID.Hex()),
		zap.String("admin", creator.Hex()),
		zap.Int("participants", len(conv.Participants)))
	return conv, nil
}

// AddMembers unions new participants into the group. Already-present ids
// are silently ignored.
func (g *GroupService) AddMembers(ctx context.Context, actor primitive.ObjectID, convID string, memberIDs []string) error {
	id, err := parseID(convID)
	if err != nil {
		return err
	}
	members, err := parseDistinctIDs(memberIDs, primitive.NilObjectID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return apperrors.ErrInvalidInput
	}
	return g.convs.AddMembers(ctx, id, actor, members)
}

// RemoveMembers subtracts participants. Duplicate-safe; absent ids are
// not errors.
func (g *GroupService) RemoveMembers(ctx context.Context, actor primitive.ObjectID, convID string, memberIDs []string) error {
	id, err := parseID(convID)
	if err != nil {
		return err
	}
	members, err := parseDistinctIDs(memberIDs, primitive.NilObjectID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return apperrors.ErrInvalidInput
	}
	return g.convs.RemoveMembers(ctx, id, actor, members)
}

// TransferAdmin hands the admin pointer to an existing participant.
func (g *GroupService) TransferAdmin(ctx context.Context, actor primitive.ObjectID, convID, newAdminID string) error {
	id, err := parseID(convID)
	if err != nil {
		return err
	}
	newAdmin, err := parseID(newAdminID)
	if err != nil {
		return err
	}
	if newAdmin == actor {
		return fmt.Errorf("%w: new admin must differ from current admin", apperrors.ErrInvalidInput)
	}
	return g.convs.TransferAdmin(ctx, id, actor, newAdmin)
}

// Leave removes the caller from the group. The current admin is blocked
// from leaving until they transfer the admin pointer; this is a
// deliberate invariant.
func (g *GroupService) Leave(ctx context.Context, actor primitive.ObjectID, convID string) error {
	id, err := parseID(convID)
	if err != nil {
		return err
	}
	if err := g.convs.Leave(ctx, id, actor); err != nil {
		if errors.Is(err, apperrors.ErrForbidden) {
			return fmt.Errorf("%w: admin must transfer before leaving", apperrors.ErrForbidden)
		}
		return err
	}
	return nil
}

// UpdateGroup partially updates the display fields.
func (g *GroupService) UpdateGroup(ctx context.Context, actor primitive.ObjectID, convID string, name *string, avatar *domain.Media) error {
	id, err := parseID(convID)
	if err != nil {
		return err
	}
	if name == nil && avatar == nil {
		return apperrors.ErrInvalidInput
	}
	if name != nil && *name == "" {
		return apperrors.ErrInvalidInput
	}
	if avatar != nil && !avatar.Valid() {
		return apperrors.ErrInvalidInput
	}
	return g.convs.UpdateGroupInfo(ctx, id, actor, name, avatar)
}

func parseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperrors.ErrInvalidInput
	}
	return id, nil
}

// parseDistinctIDs parses identity references, dropping duplicates and
// the excluded id. Any malformed reference fails the whole call.
func parseDistinctIDs(hexIDs []string, exclude primitive.ObjectID) ([]primitive.ObjectID, error) {
	seen := make(map[primitive.ObjectID]struct{}, len(hexIDs))
	out := make([]primitive.ObjectID, 0, len(hexIDs))
	for _, h := range hexIDs {
		id, err := primitive.ObjectIDFromHex(h)
		if err != nil {
			return nil, apperrors.ErrInvalidInput
		}
		if id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
