package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/facility-requests/internal/domain"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("record not found")

// RequestFilter narrows request listings. A nil field means no constraint.
type RequestFilter struct {
	UserID *string
	Status *domain.RequestStatus
}

// UserRepository persists users synced from the identity provider.
type UserRepository interface {
	// Upsert inserts the user keyed by email or refreshes the profile fields and role of the
	// existing row. The stored id and created_at are written back into user.
	Upsert(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// RequestRepository persists facility requests.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.FacilityRequest) error
	// GetByID returns the request with its owner profile populated.
	GetByID(ctx context.Context, id string) (*domain.FacilityRequest, error)
	// List returns requests newest first, each with owner profile, response count and
	// only its most recent response.
	List(ctx context.Context, filter RequestFilter) ([]domain.FacilityRequest, error)
	CountByStatus(ctx context.Context, filter RequestFilter) (map[domain.RequestStatus]int, error)
	// UpdateStatus sets status and bumps updated_at.
	UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error
	// Touch bumps updated_at only.
	Touch(ctx context.Context, id string) error
}

// ResponseRepository persists administrator responses.
type ResponseRepository interface {
	Create(ctx context.Context, resp *domain.RequestResponse) error
	// ListByRequest returns responses oldest first.
	ListByRequest(ctx context.Context, requestID string) ([]domain.RequestResponse, error)
}

// Store groups the repositories and scopes multi-write transactions.
type Store interface {
	Users() UserRepository
	Requests() RequestRepository
	Responses() ResponseRepository
	// WithTx runs fn against a transactional view of the store. All writes made through the
	// view commit together when fn returns nil and are discarded otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
