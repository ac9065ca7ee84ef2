package domain

import (
	"fmt"
	"strings"
	"time"
)

// UserRole enumerates supported roles.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// ParseUserRole rejects roles other than user and admin.
func ParseUserRole(s string) (UserRole, error) {
	switch role := UserRole(strings.ToLower(strings.TrimSpace(s))); role {
	case UserRoleUser, UserRoleAdmin:
		return role, nil
	}
	return "", fmt.Errorf("unsupported role %q", s)
}

// User represents an account known to the platform. Credentials are managed
// by the identity provider and never loaded here.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      UserRole
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
