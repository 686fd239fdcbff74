package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go-user-admin/internal/model"
)

// CredentialRepository is the immutable login allow-list. Lookups are exact
// and case-sensitive.
type CredentialRepository struct {
	byUsername map[string]model.Credential
}

func NewCredentialRepository(credentials []model.Credential) (*CredentialRepository, error) {
	if len(credentials) == 0 {
		return nil, fmt.Errorf("at least one credential is required")
	}

	byUsername := make(map[string]model.Credential, len(credentials))
	for i, c := range credentials {
		if strings.TrimSpace(c.Username) == "" || c.Password == "" {
			return nil, fmt.Errorf("credential %d: username and password are required", i)
		}
		if !c.Role.IsValid() {
			return nil, fmt.Errorf("credential %q: invalid role %q", c.Username, c.Role)
		}
		if _, exists := byUsername[c.Username]; exists {
			return nil, fmt.Errorf("credential %q: duplicate username", c.Username)
		}
		byUsername[c.Username] = c
	}

	return &CredentialRepository{byUsername: byUsername}, nil
}

// LoadCredentialFile reads a JSON array of credentials from path.
func LoadCredentialFile(path string) (*CredentialRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var credentials []model.Credential
	if err := json.Unmarshal(data, &credentials); err != nil {
		return nil, fmt.Errorf("parse credentials file %s: %w", path, err)
	}

	return NewCredentialRepository(credentials)
}

func (r *CredentialRepository) Lookup(_ context.Context, username string) (model.Credential, bool) {
	c, ok := r.byUsername[username]
	return c, ok
}

func (r *CredentialRepository) Len() int {
	return len(r.byUsername)
}
