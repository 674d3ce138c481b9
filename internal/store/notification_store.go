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

type MongoNotificationStore struct {
	coll *mongo.Collection
}

func NewNotificationStore(mc *MongoClient) NotificationStore {
	return &MongoNotificationStore{coll: mc.Database.Collection(notificationsCollection)}
}

func (s *MongoNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.coll.InsertOne(ctx, n)
	return err
}

func (s *MongoNotificationStore) MarkRead(ctx context.Context, id, owner primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "user": owner},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *MongoNotificationStore) ListByUser(ctx context.Context, owner primitive.ObjectID, limit int, before time.Time) ([]domain.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	filter := bson.M{"user": owner}
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

	var notifications []domain.Notification
	if err := cur.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

type MongoProfileStore struct {
	coll *mongo.Collection
}

func NewProfileStore(mc *MongoClient) ProfileStore {
	return &MongoProfileStore{coll: mc.Database.Collection(usersCollection)}
}

func (s *MongoProfileStore) GetProfile(ctx context.Context, id primitive.ObjectID) (domain.Profile, error) {
	opts := options.FindOne().SetProjection(bson.M{"username": 1, "avatar": 1})

	var p domain.Profile
	err := s.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Profile{}, apperrors.ErrNotFound
		}
		return domain.Profile{}, err
	}
	return p, nil
}
