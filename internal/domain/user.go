package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// Profile is the minimal public projection of a user embedded in
// delivery events. The user collection itself is owned by the profile
// service; the gateway only reads this projection.
type Profile struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	Username string             `bson:"username,omitempty" json:"username,omitempty"`
	Avatar   string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
}
