package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/facility-requests/internal/domain"
	"github.com/spec-kit/facility-requests/internal/session"
	apperrors "github.com/spec-kit/facility-requests/pkg/util"
)

const (
	identityKey = "caller_identity"
	tokenKey    = "session_token"

	// SessionCookie is the cookie set at sign-in.
	SessionCookie = "session"
)

// Middleware resolves the session token into a caller identity.
type Middleware struct {
	sessions session.Store
	logger   *zap.Logger
}

// NewMiddleware constructs middleware.
func NewMiddleware(sessions session.Store, logger *zap.Logger) *Middleware {
	return &Middleware{sessions: sessions, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	token, err := TokenFromRequest(c)
	if err != nil {
		return err
	}

	identity, err := m.sessions.Resolve(c.UserContext(), token)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			return apperrors.NewUnauthorized("invalid or expired session")
		}
		m.logger.Error("session lookup failed", zap.Error(err))
		return apperrors.NewDependencyFailure("session store", err)
	}

	c.Locals(identityKey, identity)
	c.Locals(tokenKey, token)
	return c.Next()
}

// TokenFromRequest reads the bearer token, falling back to the session cookie.
func TokenFromRequest(c *fiber.Ctx) (string, error) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apperrors.NewUnauthorized("invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if cookie := c.Cookies(SessionCookie); cookie != "" {
		return cookie, nil
	}
	return "", apperrors.NewUnauthorized("missing session")
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (domain.CallerIdentity, bool) {
	identity, ok := c.Locals(identityKey).(domain.CallerIdentity)
	return identity, ok
}

// SessionTokenFromContext returns the token the caller authenticated with.
func SessionTokenFromContext(c *fiber.Ctx) string {
	token, _ := c.Locals(tokenKey).(string)
	return token
}
