package domain

import "time"

// Role is derived from the admin allow-list at every sign-in.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User mirrors the identity provider profile of an employee.
type User struct {
	ID         string
	Email      string
	Name       string
	Image      *string
	Department *string
	JobTitle   *string
	Role       Role
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserProfile is the public subset of User embedded in request views.
type UserProfile struct {
	ID         string
	Name       string
	Email      string
	Department *string
	JobTitle   *string
}

// Profile returns the public fields of u.
func (u *User) Profile() *UserProfile {
	if u == nil {
		return nil
	}
	return &UserProfile{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Department: u.Department,
		JobTitle:   u.JobTitle,
	}
}
