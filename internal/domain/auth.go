package domain

// CallerIdentity is the authenticated principal attached to every service call.
type CallerIdentity struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	Role       Role    `json:"role"`
	Department *string `json:"department,omitempty"`
	JobTitle   *string `json:"job_title,omitempty"`
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (c CallerIdentity) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// IdentityFromUser builds the caller identity for a freshly synced user.
func IdentityFromUser(u *User) CallerIdentity {
	return CallerIdentity{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       u.Role,
		Department: u.Department,
		JobTitle:   u.JobTitle,
	}
}
