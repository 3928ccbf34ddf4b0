package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/facility-requests/internal/domain"
)

// JWTStore issues stateless HS256 session tokens. Tokens cannot be revoked before expiry.
type JWTStore struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTStore builds a new store.
func NewJWTStore(secret string, ttl time.Duration) *JWTStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTStore{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type sessionClaims struct {
	Identity domain.CallerIdentity `json:"identity"`
	jwt.RegisteredClaims
}

// Issue signs a token embedding the caller identity.
func (s *JWTStore) Issue(_ context.Context, identity domain.CallerIdentity) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &sessionClaims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expiresAt, nil
}

// Resolve validates the token and returns the identity it carries.
func (s *JWTStore) Resolve(_ context.Context, token string) (domain.CallerIdentity, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return domain.CallerIdentity{}, ErrInvalidSession
	}
	if claims.Identity.ID == "" || claims.Identity.ID != claims.Subject {
		return domain.CallerIdentity{}, ErrInvalidSession
	}
	return claims.Identity, nil
}

// Revoke is a no-op; stateless tokens live until they expire.
func (s *JWTStore) Revoke(context.Context, string) error {
	return nil
}
