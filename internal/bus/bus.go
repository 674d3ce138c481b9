package bus

import "context"

// Handler receives every event published to any room on the bus.
type Handler func(room string, payload []byte)

// Bus is the shared broadcast transport that makes room fan-out work
// across gateway processes: an event published on one instance reaches
// subscribers whose sockets live on another. Delivery is at-least-once
// to subscribers joined at publish time; there is no replay.
type Bus interface {
	Publish(ctx context.Context, room string, payload []byte) error

	// Subscribe delivers events to the handler until ctx is cancelled.
	// It blocks; run it on its own goroutine.
	Subscribe(ctx context.Context, handler Handler) error
}
