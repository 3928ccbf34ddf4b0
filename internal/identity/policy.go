package identity

import (
	"strings"

	"github.com/spec-kit/facility-requests/internal/domain"
)

// Policy holds the organizational allow-lists. It is built once at startup and never mutated.
type Policy struct {
	domains map[string]struct{}
	admins  map[string]struct{}
}

// NewPolicy normalizes the allow-lists to lower case.
func NewPolicy(allowedDomains, adminUsernames []string) Policy {
	p := Policy{
		domains: make(map[string]struct{}, len(allowedDomains)),
		admins:  make(map[string]struct{}, len(adminUsernames)),
	}
	for _, d := range allowedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			p.domains[d] = struct{}{}
		}
	}
	for _, u := range adminUsernames {
		if u = strings.ToLower(strings.TrimSpace(u)); u != "" {
			p.admins[u] = struct{}{}
		}
	}
	return p
}

// AllowsEmail reports whether the email belongs to an allowed organizational domain.
func (p Policy) AllowsEmail(email string) bool {
	_, domainPart, ok := splitEmail(email)
	if !ok {
		return false
	}
	_, allowed := p.domains[domainPart]
	return allowed
}

// RoleFor classifies the email by its local part.
func (p Policy) RoleFor(email string) domain.Role {
	local, _, ok := splitEmail(email)
	if !ok {
		return domain.RoleUser
	}
	if _, admin := p.admins[local]; admin {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}

func splitEmail(email string) (local, domainPart string, ok bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", "", false
	}
	return email[:at], email[at+1:], true
}
