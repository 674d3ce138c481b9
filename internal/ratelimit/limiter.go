package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config bounds the per-identity message rate and the per-IP handshake
// rate. Windows are fixed, not sliding.
type Config struct {
	MessageLimit    int
	MessageWindow   time.Duration
	HandshakeLimit  int
	HandshakeWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		MessageLimit:    60,
		MessageWindow:   60 * time.Second,
		HandshakeLimit:  10,
		HandshakeWindow: 60 * time.Second,
	}
}

// Limiter is a Redis-backed counter limiter. Increment and check run in
// one Lua script so concurrent callers cannot overshoot the limit.
type Limiter struct {
	client *goredis.Client
	config Config
}

type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewLimiter(client *goredis.Client, config Config) *Limiter {
	return &Limiter{client: client, config: config}
}

func (l *Limiter) AllowMessage(ctx context.Context, userID string) (*Result, error) {
	key := fmt.Sprintf("ratelimit:%s:messages", userID)
	return l.checkLimit(ctx, key, l.config.MessageLimit, l.config.MessageWindow)
}

func (l *Limiter) AllowHandshake(ctx context.Context, ip string) (*Result, error) {
	key := fmt.Sprintf("ratelimit:%s:handshake", ip)
	return l.checkLimit(ctx, key, l.config.HandshakeLimit, l.config.HandshakeWindow)
}

var checkScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if ttl == window then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	else
		return {0, 0, ttl}
	end
`)

func (l *Limiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := checkScript.Run(ctx, l.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	allowed := resultSlice[0].(int64) == 1
	remaining := int(resultSlice[1].(int64))
	resetIn := time.Duration(resultSlice[2].(int64)) * time.Second

	return &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetIn:   resetIn,
		Limit:     limit,
	}, nil
}

// Reset clears a single counter. Admin use.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}
