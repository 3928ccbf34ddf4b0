package dto

import (
	"time"

	"github.com/spec-kit/facility-requests/internal/domain"
)

// SignInRequest carries the identity-provider assertion.
type SignInRequest struct {
	Assertion string `json:"assertion"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expires_at"`
	User      domain.CallerIdentity `json:"user"`
}
