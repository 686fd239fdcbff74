package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go-user-admin/internal/model"
)

// MemoryUserRepository keeps directory records in process memory. Usernames
// are unique case-insensitively.
type MemoryUserRepository struct {
	mu   sync.RWMutex
	byID map[string]model.DirectoryUser
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: map[string]model.DirectoryUser{}}
}

func (r *MemoryUserRepository) List(_ context.Context, filter model.UserFilter) ([]model.DirectoryUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]model.DirectoryUser, 0, len(r.byID))
	for _, u := range r.byID {
		if filter.Matches(u) {
			users = append(users, u)
		}
	}

	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i].Username) < strings.ToLower(users[j].Username)
	})

	return users, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (model.DirectoryUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return model.DirectoryUser{}, fmt.Errorf("%w: %s", model.ErrUserNotFound, id)
	}
	return u, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user model.DirectoryUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[user.ID]; exists {
		return fmt.Errorf("%w: id %s", model.ErrUserAlreadyExists, user.ID)
	}
	if r.usernameTakenLocked(user.Username, "") {
		return fmt.Errorf("%w: %s", model.ErrUserAlreadyExists, user.Username)
	}

	r.byID[user.ID] = user
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user model.DirectoryUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[user.ID]; !exists {
		return fmt.Errorf("%w: %s", model.ErrUserNotFound, user.ID)
	}
	if r.usernameTakenLocked(user.Username, user.ID) {
		return fmt.Errorf("%w: %s", model.ErrUserAlreadyExists, user.Username)
	}

	r.byID[user.ID] = user
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return fmt.Errorf("%w: %s", model.ErrUserNotFound, id)
	}
	delete(r.byID, id)
	return nil
}

func (r *MemoryUserRepository) TouchLastLogin(_ context.Context, username string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.byID {
		if strings.EqualFold(u.Username, username) {
			stamp := at.UTC()
			u.LastLoginAt = &stamp
			r.byID[id] = u
			return nil
		}
	}

	return fmt.Errorf("%w: %s", model.ErrUserNotFound, username)
}

func (r *MemoryUserRepository) usernameTakenLocked(username string, exceptID string) bool {
	for id, u := range r.byID {
		if id != exceptID && strings.EqualFold(u.Username, username) {
			return true
		}
	}
	return false
}
