// Package session issues and resolves the tokens that carry a signed-in caller between requests.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/facility-requests/internal/domain"
)

// ErrInvalidSession is returned for unknown, expired or tampered tokens.
var ErrInvalidSession = errors.New("invalid session")

// Store is implemented by every session backend.
type Store interface {
	Issue(ctx context.Context, identity domain.CallerIdentity) (token string, expiresAt time.Time, err error)
	Resolve(ctx context.Context, token string) (domain.CallerIdentity, error)
	Revoke(ctx context.Context, token string) error
}
