package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/facility-requests/internal/domain"
)

const keyPrefix = "session:"

// RedisStore keeps opaque session ids in Redis with a TTL, so sign-out takes effect immediately.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore builds a new store.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Issue stores the identity under a fresh random id.
func (s *RedisStore) Issue(ctx context.Context, identity domain.CallerIdentity) (string, time.Time, error) {
	payload, err := json.Marshal(identity)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encode session: %w", err)
	}
	token := uuid.NewString()
	if err := s.client.Set(ctx, keyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("store session: %w", err)
	}
	return token, time.Now().Add(s.ttl), nil
}

// Resolve loads the identity for the token. Backend failures are returned as-is so callers
// can tell an outage from a bad token.
func (s *RedisStore) Resolve(ctx context.Context, token string) (domain.CallerIdentity, error) {
	if _, err := uuid.Parse(token); err != nil {
		return domain.CallerIdentity{}, ErrInvalidSession
	}
	raw, err := s.client.Get(ctx, keyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CallerIdentity{}, ErrInvalidSession
	}
	if err != nil {
		return domain.CallerIdentity{}, fmt.Errorf("load session: %w", err)
	}

	var identity domain.CallerIdentity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return domain.CallerIdentity{}, ErrInvalidSession
	}
	return identity, nil
}

// Revoke deletes the session.
func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
