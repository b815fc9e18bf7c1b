package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "projecthub:session:"

// RedisSessionStore keeps flows in Redis so they survive restarts and can
// be shared by several server instances. Abandoned flows expire through
// the key TTL, refreshed on every Put.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessionStore wraps client. A non-positive ttl disables expiry.
func NewRedisSessionStore(client *redis.Client, prefix string, ttl time.Duration) *RedisSessionStore {
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisSessionStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisSessionStore) key(sessionID string) string {
	return r.prefix + sessionID
}

// Get loads the flow for sessionID.
func (r *RedisSessionStore) Get(ctx context.Context, sessionID string) (*State, error) {
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !s.Valid() {
		return nil, fmt.Errorf("decode session: invalid state for kind %q", s.Kind)
	}
	return &s, nil
}

// Put stores the flow for sessionID and refreshes its TTL.
func (r *RedisSessionStore) Put(ctx context.Context, sessionID string, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Delete removes the flow for sessionID.
func (r *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *RedisSessionStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisSessionStore) Close() error {
	return r.client.Close()
}

var _ SessionStore = (*RedisSessionStore)(nil)
