package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is a 1:1 or group chat. For a direct conversation the
// canonical sorted participant pair is unique system-wide (enforced by a
// unique index on PairKey); a group always has exactly one admin drawn
// from its participants.
type Conversation struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Participants  []primitive.ObjectID `bson:"participants" json:"participants"`
	PairKey       string               `bson:"pairKey,omitempty" json:"-"`
	IsGroup       bool                 `bson:"isGroup" json:"isGroup"`
	GroupName     string               `bson:"groupName,omitempty" json:"groupName,omitempty"`
	GroupAvatar   *Media               `bson:"groupAvatar,omitempty" json:"groupAvatar,omitempty"`
	Admin         primitive.ObjectID   `bson:"admin,omitempty" json:"admin,omitempty"`
	LastMessageID primitive.ObjectID   `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	LastMessageAt time.Time            `bson:"lastMessageAt,omitempty" json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (c *Conversation) HasParticipant(id primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// DirectPairKey returns the canonical key for a 1:1 conversation between
// two identities, independent of which side initiates.
func DirectPairKey(a, b primitive.ObjectID) string {
	x, y := a.Hex(), b.Hex()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

// Media is a single media descriptor attached to a message or used as a
// group avatar.
type Media struct {
	Kind string `bson:"kind" json:"kind"`
	URL  string `bson:"url" json:"url"`
}

const (
	MediaImage = "image"
	MediaVideo = "video"
	MediaAudio = "audio"
	MediaFile  = "file"
)

func (m *Media) Valid() bool {
	if m == nil || m.URL == "" {
		return false
	}
	switch m.Kind {
	case MediaImage, MediaVideo, MediaAudio, MediaFile:
		return true
	}
	return false
}

// MediaKindFromContentType maps a MIME type onto a media descriptor kind.
func MediaKindFromContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return MediaImage
	case strings.HasPrefix(contentType, "video/"):
		return MediaVideo
	case strings.HasPrefix(contentType, "audio/"):
		return MediaAudio
	default:
		return MediaFile
	}
}
