package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-user-admin/internal/event"
	"go-user-admin/internal/model"
	"go-user-admin/pkg/apierror"
)

// UserStore persists directory records. Implementations report missing rows
// with model.ErrUserNotFound and username clashes with model.ErrUserAlreadyExists.
type UserStore interface {
	List(ctx context.Context, filter model.UserFilter) ([]model.DirectoryUser, error)
	FindByID(ctx context.Context, id string) (model.DirectoryUser, error)
	Create(ctx context.Context, user model.DirectoryUser) error
	Update(ctx context.Context, user model.DirectoryUser) error
	Delete(ctx context.Context, id string) error
	TouchLastLogin(ctx context.Context, username string, at time.Time) error
}

type UserService struct {
	store UserStore
	bus   event.Bus
	now   func() time.Time
}

func NewUserService(store UserStore, bus event.Bus) *UserService {
	return &UserService{store: store, bus: bus, now: time.Now}
}

func (s *UserService) List(ctx context.Context, filter model.UserFilter) ([]model.DirectoryUser, error) {
	if filter.Role != "" && !filter.Role.IsValid() {
		return nil, apierror.Validation("invalid role filter", string(filter.Role))
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apierror.Validation("invalid status filter", string(filter.Status))
	}

	return s.store.List(ctx, filter)
}

func (s *UserService) Stats(ctx context.Context) (model.UserStats, error) {
	users, err := s.store.List(ctx, model.UserFilter{})
	if err != nil {
		return model.UserStats{}, err
	}

	stats := model.UserStats{
		Total:    len(users),
		ByRole:   map[model.Role]int{},
		ByStatus: map[model.UserStatus]int{},
	}
	for _, u := range users {
		stats.ByRole[u.Role]++
		stats.ByStatus[u.Status]++
	}
	stats.Admins = stats.ByRole[model.RoleAdmin]
	stats.Active = stats.ByStatus[model.StatusActive]

	return stats, nil
}

func (s *UserService) Get(ctx context.Context, id string) (model.DirectoryUser, error) {
	return s.store.FindByID(ctx, id)
}

func (s *UserService) Create(ctx context.Context, req model.UserRequest) (model.DirectoryUser, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return model.DirectoryUser{}, validationError(err)
	}

	now := s.now().UTC()
	user := model.DirectoryUser{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
		Status:    req.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, user); err != nil {
		return model.DirectoryUser{}, err
	}

	s.publish(event.TypeUserCreated, user)
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id string, req model.UserRequest) (model.DirectoryUser, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return model.DirectoryUser{}, validationError(err)
	}

	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return model.DirectoryUser{}, err
	}
	if existing.Role == model.RoleAdmin && req.Status != existing.Status {
		return model.DirectoryUser{}, fmt.Errorf("%w: status of admin accounts cannot be changed", model.ErrProtectedUser)
	}

	existing.Username = req.Username
	existing.Name = req.Name
	existing.Email = req.Email
	existing.Role = req.Role
	existing.Status = req.Status
	existing.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, existing); err != nil {
		return model.DirectoryUser{}, err
	}

	s.publish(event.TypeUserUpdated, existing)
	return existing, nil
}

func (s *UserService) UpdateStatus(ctx context.Context, id string, req model.UpdateStatusRequest) (model.DirectoryUser, error) {
	if err := req.Validate(); err != nil {
		return model.DirectoryUser{}, validationError(err)
	}

	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return model.DirectoryUser{}, err
	}
	if existing.Role == model.RoleAdmin {
		return model.DirectoryUser{}, fmt.Errorf("%w: status of admin accounts cannot be changed", model.ErrProtectedUser)
	}
	if existing.Status == req.Status {
		return existing, nil
	}

	existing.Status = req.Status
	existing.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, existing); err != nil {
		return model.DirectoryUser{}, err
	}

	s.publish(event.TypeUserStatusChanged, existing)
	return existing, nil
}

// Delete removes a record. actorUsername is the verified subject of the caller,
// who may not delete their own record.
func (s *UserService) Delete(ctx context.Context, id string, actorUsername string) error {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if strings.EqualFold(existing.Username, actorUsername) {
		return fmt.Errorf("%w: cannot delete your own account", model.ErrProtectedUser)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(event.TypeUserDeleted, existing)
	return nil
}

// RecordLogin stamps the last login time on the record named username.
func (s *UserService) RecordLogin(ctx context.Context, username string, at time.Time) error {
	return s.store.TouchLastLogin(ctx, username, at)
}

func (s *UserService) publish(typ event.Type, user model.DirectoryUser) {
	if s.bus == nil {
		return
	}

	s.bus.Publish(event.Event{
		Type:    typ,
		Subject: user.ID,
		Payload: user,
	})
}

func validationError(err error) error {
	return apierror.Validation("invalid user payload", err.Error())
}
