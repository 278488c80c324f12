package auth

import (
	"slices"
	"strings"
)

// Role is the capability tag carried by an account.
type Role string

const (
	// RoleStudent is a diner submitting feedback
	RoleStudent Role = "student"
	// RoleAdmin manages mess halls and reviews feedback
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	return slices.Contains(roles, r)
}

// ParseRole maps a raw string to a Role, case insensitive.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	return r, r.IsValid()
}
