package presence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const keyPrefix = "presence:"

// Entry is the ephemeral liveness marker stored per identity. The owning
// client id lets a disconnect drop only its own entry.
type Entry struct {
	ClientID string    `json:"client_id"`
	Since    time.Time `json:"since"`
}

// Tracker records which identities currently hold a live connection.
// Liveness is a TTL key: refreshed on activity, naturally expiring on
// silence. Absence of the key means offline. Never consulted on
// delivery paths; correctness comes from the bus, not from presence.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTracker(client *redis.Client, ttl time.Duration) *Tracker {
	if ttl == 0 {
		ttl = 45 * time.Second
	}
	return &Tracker{client: client, ttl: ttl}
}

func (t *Tracker) MarkOnline(ctx context.Context, userID primitive.ObjectID, clientID string) error {
	entry := Entry{ClientID: clientID, Since: time.Now().UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return t.client.Set(ctx, keyPrefix+userID.Hex(), data, t.ttl).Err()
}

// Refresh re-extends the expiry. Called on any inbound activity.
func (t *Tracker) Refresh(ctx context.Context, userID primitive.ObjectID) error {
	return t.client.Expire(ctx, keyPrefix+userID.Hex(), t.ttl).Err()
}

// Forget drops the entry if this client still owns it. Best-effort: a
// missed delete just means the key expires on its own.
func (t *Tracker) Forget(ctx context.Context, userID primitive.ObjectID, clientID string) error {
	key := keyPrefix + userID.Hex()
	data, err := t.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return err
	}
	if entry.ClientID != clientID {
		return nil
	}
	return t.client.Del(ctx, key).Err()
}

// IsOnline is a point-in-time best-effort query.
func (t *Tracker) IsOnline(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	n, err := t.client.Exists(ctx, keyPrefix+userID.Hex()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OnlineCount scans the presence keyspace. Diagnostic use only.
func (t *Tracker) OnlineCount(ctx context.Context) (int64, error) {
	var count int64
	var cursor uint64
	for {
		keys, next, err := t.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return 0, err
		}
		count += int64(len(keys))
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}
