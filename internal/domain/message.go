package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxContentRunes bounds message text length.
const MaxContentRunes = 4096

// Message is one unit of conversation content. A message always carries
// text or media or both, never neither, and its sender is a participant
// of the owning conversation at send time.
type Message struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	ChatID               primitive.ObjectID   `bson:"chat" json:"chatId"`
	SenderID             primitive.ObjectID   `bson:"sender" json:"sender"`
	Content              string               `bson:"content,omitempty" json:"content,omitempty"`
	Media                *Media               `bson:"media,omitempty" json:"media,omitempty"`
	ReadBy               []primitive.ObjectID `bson:"readBy" json:"readBy"`
	DeletedFor           []primitive.ObjectID `bson:"deletedFor,omitempty" json:"-"`
	IsDeletedForEveryone bool                 `bson:"isDeletedForEveryone" json:"isDeletedForEveryone"`
	Reactions            []Reaction           `bson:"reactions,omitempty" json:"reactions,omitempty"`
	CreatedAt            time.Time            `bson:"createdAt" json:"createdAt"`
}

// Reaction is one identity's reaction symbol on a message.
type Reaction struct {
	UserID primitive.ObjectID `bson:"user" json:"user"`
	Emoji  string             `bson:"emoji" json:"emoji"`
}
