package events

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Outbound event names pushed to room subscribers.
const (
	NewMessage   = "new-message"
	Notification = "notification"
)

// Event is the wire frame published on the bus and written to sockets.
// The same bytes travel end to end, so subscribers on every instance see
// identical payloads.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// Marshal builds a wire frame. Payload marshalling errors are programmer
// errors (the payloads are our own structs), so they surface as a panic
// in development rather than a silent drop.
func Marshal(name string, payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	frame, err := json.Marshal(Event{Name: name, Data: data})
	if err != nil {
		panic(err)
	}
	return frame
}

// ConversationRoom names the broadcast room of a conversation.
func ConversationRoom(id primitive.ObjectID) string {
	return "conv:" + id.Hex()
}

// UserRoom names an identity's personal notification room.
func UserRoom(id primitive.ObjectID) string {
	return "user:" + id.Hex()
}
