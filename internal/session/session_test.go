package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/facility-requests/internal/domain"
)

func testIdentity() domain.CallerIdentity {
	dept := "Engineering"
	return domain.CallerIdentity{
		ID:         "0d9d8a52-52a4-4d3e-9f52-3c1f3f7c9a10",
		Email:      "ana@example.com",
		Name:       "Ana",
		Role:       domain.RoleUser,
		Department: &dept,
	}
}

func TestJWTStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewJWTStore("session-secret", time.Hour)

	token, expiresAt, err := store.Issue(ctx, testIdentity())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	got, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity(), got)

	require.NoError(t, store.Revoke(ctx, token))
}

func TestJWTStoreRejects(t *testing.T) {
	ctx := context.Background()
	store := NewJWTStore("session-secret", time.Minute)
	token, _, err := store.Issue(ctx, testIdentity())
	require.NoError(t, err)

	other := NewJWTStore("another-secret", time.Minute)
	_, err = other.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = store.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = store.Resolve(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, 30*time.Minute)

	token, _, err := store.Issue(ctx, testIdentity())
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+token))
	assert.Equal(t, 30*time.Minute, mr.TTL(keyPrefix+token))

	got, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity(), got)

	require.NoError(t, store.Revoke(ctx, token))
	_, err = store.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRedisStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)

	token, _, err := store.Issue(ctx, testIdentity())
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = store.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = store.Resolve(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRedisStoreBackendFailure(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)
	token, _, err := store.Issue(ctx, testIdentity())
	require.NoError(t, err)

	mr.Close()
	_, err = store.Resolve(ctx, token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSession)
}
