package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mingle-gateway/internal/domain"
	apperrors "mingle-gateway/pkg/errors"
)

type MongoConversationStore struct {
	coll *mongo.Collection
}

func NewConversationStore(mc *MongoClient) ConversationStore {
	return &MongoConversationStore{coll: mc.Database.Collection(conversationsCollection)}
}

func (s *MongoConversationStore) GetByID(ctx context.Context, id primitive.ObjectID) (domain.Conversation, error) {
	var c domain.Conversation
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Conversation{}, apperrors.ErrNotFound
		}
		return domain.Conversation{}, err
	}
	return c, nil
}

func (s *MongoConversationStore) FindOrCreateDirect(ctx context.Context, a, b primitive.ObjectID) (domain.Conversation, bool, error) {
	now := time.Now().UTC()
	newID := primitive.NewObjectID()
	key := domain.DirectPairKey(a, b)

	filter := bson.M{"isGroup": false, "pairKey": key}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":          newID,
			"participants": bson.A{a, b},
			"isGroup":      false,
			"pairKey":      key,
			"createdAt":    now,
			"updatedAt":    now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var c domain.Conversation
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
	if mongo.IsDuplicateKeyError(err) {
		// Lost the upsert race on the unique pair key; the second attempt
		// matches the winner's document.
		err = s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
	}
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return c, c.ID == newID, nil
}

func (s *MongoConversationStore) CreateGroup(ctx context.Context, c *domain.Conversation) error {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.IsGroup = true
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := s.coll.InsertOne(ctx, c)
	return err
}

func (s *MongoConversationStore) SetLastMessage(ctx context.Context, convID, msgID primitive.ObjectID, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": convID},
		bson.M{"$set": bson.M{
			"lastMessage":   msgID,
			"lastMessageAt": at,
			"updatedAt":     at,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *MongoConversationStore) AddMembers(ctx context.Context, convID, actor primitive.ObjectID, members []primitive.ObjectID) error {
	filter := bson.M{"_id": convID, "isGroup": true, "admin": actor}
	update := bson.M{
		"$addToSet": bson.M{"participants": bson.M{"$each": members}},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.classifyAdminFailure(ctx, convID)
	}
	return nil
}

func (s *MongoConversationStore) RemoveMembers(ctx context.Context, convID, actor primitive.ObjectID, members []primitive.ObjectID) error {
	filter := bson.M{"_id": convID, "isGroup": true, "admin": actor}
	update := bson.M{
		"$pull": bson.M{"participants": bson.M{"$in": members}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.classifyAdminFailure(ctx, convID)
	}
	return nil
}

func (s *MongoConversationStore) TransferAdmin(ctx context.Context, convID, actor, newAdmin primitive.ObjectID) error {
	filter := bson.M{
		"_id":          convID,
		"isGroup":      true,
		"admin":        actor,
		"participants": newAdmin,
	}
	update := bson.M{"$set": bson.M{"admin": newAdmin, "updatedAt": time.Now().UTC()}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		conv, err := s.GetByID(ctx, convID)
		if err != nil {
			return err
		}
		if conv.Admin != actor {
			return apperrors.ErrForbidden
		}
		// Actor is admin, so the new admin must not be a participant.
		return apperrors.ErrInvalidInput
	}
	return nil
}

func (s *MongoConversationStore) Leave(ctx context.Context, convID, actor primitive.ObjectID) error {
	filter := bson.M{
		"_id":          convID,
		"isGroup":      true,
		"participants": actor,
		"admin":        bson.M{"$ne": actor},
	}
	update := bson.M{
		"$pull": bson.M{"participants": actor},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		conv, err := s.GetByID(ctx, convID)
		if err != nil {
			return err
		}
		if !conv.IsGroup {
			return apperrors.ErrInvalidInput
		}
		// Either the actor is the admin or not a participant at all.
		return apperrors.ErrForbidden
	}
	return nil
}

func (s *MongoConversationStore) UpdateGroupInfo(ctx context.Context, convID, actor primitive.ObjectID, name *string, avatar *domain.Media) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if name != nil {
		set["groupName"] = *name
	}
	if avatar != nil {
		set["groupAvatar"] = avatar
	}

	filter := bson.M{"_id": convID, "isGroup": true, "admin": actor}
	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.classifyAdminFailure(ctx, convID)
	}
	return nil
}

// classifyAdminFailure turns a zero-matched admin-only update into the
// right sentinel. Authorization itself already happened atomically in the
// update filter; this read is only for error shaping.
func (s *MongoConversationStore) classifyAdminFailure(ctx context.Context, convID primitive.ObjectID) error {
	conv, err := s.GetByID(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return apperrors.ErrInvalidInput
	}
	return apperrors.ErrForbidden
}
