package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/facility-requests/internal/domain"
	"github.com/spec-kit/facility-requests/internal/observability"
	"github.com/spec-kit/facility-requests/internal/session"
	apperrors "github.com/spec-kit/facility-requests/pkg/util"
)

// Authenticator admits a caller from a raw identity-provider assertion.
type Authenticator interface {
	Authenticate(ctx context.Context, rawAssertion string) (domain.CallerIdentity, error)
}

// SignInResult is returned after a successful sign-in.
type SignInResult struct {
	Token     string
	ExpiresAt time.Time
	Identity  domain.CallerIdentity
}

// AuthService coordinates sign-in and sign-out flows.
type AuthService struct {
	gate     Authenticator
	sessions session.Store
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(gate Authenticator, sessions session.Store, metrics *observability.Metrics, logger *zap.Logger) *AuthService {
	return &AuthService{gate: gate, sessions: sessions, metrics: metrics, logger: logger}
}

// SignIn runs the identity gate and opens a session. A rejected caller gets no session.
func (s *AuthService) SignIn(ctx context.Context, rawAssertion string) (*SignInResult, error) {
	identity, err := s.gate.Authenticate(ctx, rawAssertion)
	if err != nil {
		s.metrics.RecordEvent("signin_rejected")
		return nil, err
	}
	token, expiresAt, err := s.sessions.Issue(ctx, identity)
	if err != nil {
		s.logger.Error("session issue failed", zap.String("user_id", identity.ID), zap.Error(err))
		return nil, apperrors.NewDependencyFailure("session store", err)
	}
	s.metrics.RecordEvent("signin")
	return &SignInResult{Token: token, ExpiresAt: expiresAt, Identity: identity}, nil
}

// SignOut revokes the session token.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		s.logger.Error("session revoke failed", zap.Error(err))
		return apperrors.NewDependencyFailure("session store", err)
	}
	return nil
}
