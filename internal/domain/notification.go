package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationMessage NotificationType = "message"
	NotificationGroup   NotificationType = "group"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow,
		NotificationMessage, NotificationGroup:
		return true
	}
	return false
}

// Notification is a one-way event record owned by a single identity.
type Notification struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	UserID         primitive.ObjectID  `bson:"user" json:"-"`
	Type           NotificationType    `bson:"type" json:"type"`
	Title          string              `bson:"title" json:"title"`
	Message        string              `bson:"message" json:"message"`
	RelatedUser    *primitive.ObjectID `bson:"relatedUser,omitempty" json:"relatedUser,omitempty"`
	RelatedPost    *primitive.ObjectID `bson:"relatedPost,omitempty" json:"relatedPost,omitempty"`
	RelatedComment *primitive.ObjectID `bson:"relatedComment,omitempty" json:"relatedComment,omitempty"`
	IsRead         bool                `bson:"isRead" json:"isRead"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
}

// NotificationRefs carries the optional references of a domain event.
type NotificationRefs struct {
	RelatedUser    *primitive.ObjectID
	RelatedPost    *primitive.ObjectID
	RelatedComment *primitive.ObjectID
}
