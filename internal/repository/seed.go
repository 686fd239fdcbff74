package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go-user-admin/internal/model"
)

//go:embed seed/users.json
var seedUsersJSON []byte

type userSeeder interface {
	List(ctx context.Context, filter model.UserFilter) ([]model.DirectoryUser, error)
	Create(ctx context.Context, user model.DirectoryUser) error
}

// SeedUsers loads the demo directory records into store when it is empty and
// returns how many were inserted.
func SeedUsers(ctx context.Context, store userSeeder, now time.Time) (int, error) {
	existing, err := store.List(ctx, model.UserFilter{})
	if err != nil {
		return 0, fmt.Errorf("check existing users: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	var seeds []model.DirectoryUser
	if err := json.Unmarshal(seedUsersJSON, &seeds); err != nil {
		return 0, fmt.Errorf("parse seed users: %w", err)
	}

	now = now.UTC()
	for _, u := range seeds {
		u.ID = uuid.NewString()
		u.CreatedAt = now
		u.UpdatedAt = now
		if err := store.Create(ctx, u); err != nil {
			return 0, fmt.Errorf("seed user %q: %w", u.Username, err)
		}
	}

	return len(seeds), nil
}
