package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facility-requests/internal/api/dto"
	"github.com/spec-kit/facility-requests/internal/auth"
	"github.com/spec-kit/facility-requests/internal/service"
	apperrors "github.com/spec-kit/facility-requests/pkg/util"
)

// AuthHandler exposes sign-in, sign-out and the current identity.
type AuthHandler struct {
	service      *service.AuthService
	secureCookie bool
}

// NewAuthHandler constructs handler. secureCookie marks the session cookie HTTPS-only.
func NewAuthHandler(authService *service.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: authService, secureCookie: secureCookie}
}

// SignIn POST /auth/signin.
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil || req.Assertion == "" {
		return apperrors.NewValidationError("assertion required", nil)
	}
	result, err := h.service.SignIn(c.UserContext(), req.Assertion)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      result.Identity,
	}})
}

// SignOut POST /auth/signout.
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	if err := h.service.SignOut(c.UserContext(), auth.SessionTokenFromContext(c)); err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.SendStatus(fiber.StatusNoContent)
}

// Me GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caller})
}
