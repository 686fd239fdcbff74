package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleManager Role = "manager"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleManager:
		return true
	default:
		return false
	}
}

type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusInactive  UserStatus = "inactive"
	StatusSuspended UserStatus = "suspended"
)

func (s UserStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	default:
		return false
	}
}

// Credential is one entry of the login allow-list.
type Credential struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
}

// AuthUser is the public view of a logged-in identity returned by the login endpoint.
type AuthUser struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
}

type DirectoryUser struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Status      UserStatus `json:"status"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type DirectoryUserList struct {
	Users []DirectoryUser `json:"users"`
}

type UserFilter struct {
	Role   Role
	Status UserStatus
	Query  string
}

type UserStats struct {
	Total    int                `json:"total"`
	Admins   int                `json:"admins"`
	Active   int                `json:"active"`
	ByRole   map[Role]int       `json:"by_role"`
	ByStatus map[UserStatus]int `json:"by_status"`
}

// Matches reports whether u passes every non-empty criterion of f. Query is a
// case-insensitive substring match over username, name, email, role and status.
func (f UserFilter) Matches(u DirectoryUser) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.Status != "" && u.Status != f.Status {
		return false
	}

	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	for _, field := range []string{u.Username, u.Name, u.Email, string(u.Role), string(u.Status)} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
