package bus

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "room:"

// RedisBus carries room events over Redis pub/sub so that every gateway
// process sees every publish regardless of where it originated.
type RedisBus struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisBus(client *redis.Client, log *zap.Logger) *RedisBus {
	return &RedisBus{client: client, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, room string, payload []byte) error {
	return b.client.Publish(ctx, channelPrefix+room, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, handler Handler) error {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		room := strings.TrimPrefix(msg.Channel, channelPrefix)
		handler(room, []byte(msg.Payload))
	}
}
