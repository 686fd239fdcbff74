package model

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var (
	roleRule   = validation.In(RoleAdmin, RoleUser, RoleManager).Error("must be one of admin, user, manager")
	statusRule = validation.In(StatusActive, StatusInactive, StatusSuspended).Error("must be one of active, inactive, suspended")
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// UserRequest is the create/update payload of the admin user form.
type UserRequest struct {
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     Role       `json:"role"`
	Status   UserStatus `json:"status"`
}

// Normalize trims text fields and fills the form defaults for role and status.
func (r UserRequest) Normalize() UserRequest {
	r.Username = strings.TrimSpace(r.Username)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Role = Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
	r.Status = UserStatus(strings.ToLower(strings.TrimSpace(string(r.Status))))
	if r.Role == "" {
		r.Role = RoleUser
	}
	if r.Status == "" {
		r.Status = StatusActive
	}
	return r
}

func (r UserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Role, validation.Required, roleRule),
		validation.Field(&r.Status, validation.Required, statusRule),
	)
}

type UpdateStatusRequest struct {
	Status UserStatus `json:"status"`
}

func (r UpdateStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, statusRule),
	)
}
