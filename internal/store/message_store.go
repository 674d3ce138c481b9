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

type MongoMessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore(mc *MongoClient) MessageStore {
	return &MongoMessageStore{coll: mc.Database.Collection(messagesCollection)}
}

func (s *MongoMessageStore) Create(ctx context.Context, m *domain.Message) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if len(m.ReadBy) == 0 {
		m.ReadBy = []primitive.ObjectID{m.SenderID}
	}
	_, err := s.coll.InsertOne(ctx, m)
	return err
}

func (s *MongoMessageStore) GetByID(ctx context.Context, id primitive.ObjectID) (domain.Message, error) {
	var m domain.Message
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Message{}, apperrors.ErrNotFound
		}
		return domain.Message{}, err
	}
	return m, nil
}

func (s *MongoMessageStore) MarkLatestRead(ctx context.Context, convID, userID primitive.ObjectID) error {
	filter := bson.M{"chat": convID, "isDeletedForEveryone": false}
	update := bson.M{"$addToSet": bson.M{"readBy": userID}}
	opts := options.FindOneAndUpdate().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return err
}

func (s *MongoMessageStore) AddReaction(ctx context.Context, msgID, userID primitive.ObjectID, emoji string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": msgID, "isDeletedForEveryone": false},
		bson.M{"$addToSet": bson.M{"reactions": domain.Reaction{UserID: userID, Emoji: emoji}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *MongoMessageStore) DeleteForUser(ctx context.Context, msgID, userID primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": msgID},
		bson.M{"$addToSet": bson.M{"deletedFor": userID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *MongoMessageStore) DeleteForEveryone(ctx context.Context, msgID, sender primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": msgID, "sender": sender},
		bson.M{"$set": bson.M{"isDeletedForEveryone": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetByID(ctx, msgID); err != nil {
			return err
		}
		return apperrors.ErrForbidden
	}
	return nil
}

func (s *MongoMessageStore) ListByConversation(ctx context.Context, convID, viewer primitive.ObjectID, limit int, before time.Time) ([]domain.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	filter := bson.M{
		"chat":                 convID,
		"isDeletedForEveryone": false,
		"deletedFor":           bson.M{"$ne": viewer},
	}
	if !before.IsZero() {
		filter["createdAt"] = bson.M{"$lt": before}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var messages []domain.Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}

	// Newest-first from the index, reversed to chronological for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
