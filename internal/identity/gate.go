// Package identity admits callers asserted by the external identity provider and keeps the
// local user table in sync with their profile.
package identity

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/facility-requests/internal/domain"
	"github.com/spec-kit/facility-requests/internal/repository"
	apperrors "github.com/spec-kit/facility-requests/pkg/util"
)

// Gate authenticates sign-in events.
type Gate struct {
	policy   Policy
	verifier AssertionVerifier
	users    repository.UserRepository
	logger   *zap.Logger
}

// NewGate constructs the gate.
func NewGate(policy Policy, verifier AssertionVerifier, users repository.UserRepository, logger *zap.Logger) *Gate {
	return &Gate{policy: policy, verifier: verifier, users: users, logger: logger}
}

// Authenticate verifies a raw assertion and signs the caller in.
func (g *Gate) Authenticate(ctx context.Context, rawAssertion string) (domain.CallerIdentity, error) {
	claims, err := g.verifier.Verify(rawAssertion)
	if err != nil {
		g.logger.Debug("assertion rejected", zap.Error(err))
		return domain.CallerIdentity{}, apperrors.NewUnauthorized("invalid identity assertion")
	}
	return g.SignIn(ctx, claims)
}

// SignIn applies the domain allow-list, recomputes the role and upserts the user record.
// Rejected callers never touch the user table.
func (g *Gate) SignIn(ctx context.Context, claims Claims) (domain.CallerIdentity, error) {
	if !g.policy.AllowsEmail(claims.Email) {
		g.logger.Info("sign-in rejected: domain not allowed", zap.String("email", claims.Email))
		return domain.CallerIdentity{}, apperrors.NewUnauthorized("email domain not allowed")
	}

	user := &domain.User{
		Email:      strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:       claims.Name,
		Image:      claims.Image,
		Department: claims.Department,
		JobTitle:   claims.JobTitle,
		Role:       g.policy.RoleFor(claims.Email),
	}
	if err := g.users.Upsert(ctx, user); err != nil {
		g.logger.Error("sign-in user sync failed", zap.String("email", claims.Email), zap.Error(err))
		return domain.CallerIdentity{}, apperrors.NewDependencyFailure("user store", err)
	}

	g.logger.Info("signed in",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)))
	return domain.IdentityFromUser(user), nil
}
