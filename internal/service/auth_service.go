package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-user-admin/internal/model"
	"go-user-admin/pkg/apierror"
)

// CredentialStore resolves a login name to its allow-list entry.
type CredentialStore interface {
	Lookup(ctx context.Context, username string) (model.Credential, bool)
}

type loginRecorder interface {
	RecordLogin(ctx context.Context, username string, at time.Time) error
}

type LoginResult struct {
	Token string
	User  model.AuthUser
}

type AuthService struct {
	credentials CredentialStore
	tokens      *TokenService
	logins      loginRecorder
	now         func() time.Time
}

func NewAuthService(credentials CredentialStore, tokens *TokenService) *AuthService {
	return &AuthService{
		credentials: credentials,
		tokens:      tokens,
		now:         time.Now,
	}
}

// SetLoginRecorder registers a collaborator that is told about successful logins.
func (s *AuthService) SetLoginRecorder(recorder loginRecorder) {
	s.logins = recorder
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (LoginResult, error) {
	credential, exists := s.credentials.Lookup(ctx, username)
	if !exists || subtle.ConstantTimeCompare([]byte(credential.Password), []byte(password)) != 1 {
		return LoginResult{}, apierror.Unauthorized("Invalid credentials", "")
	}

	token, err := s.tokens.Issue(credential.Username, credential.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue session token: %w", err)
	}

	if s.logins != nil {
		if err := s.logins.RecordLogin(ctx, credential.Username, s.now().UTC()); err != nil && !errors.Is(err, model.ErrUserNotFound) {
			slog.Warn("failed to record login", "username", credential.Username, "error", err)
		}
	}

	return LoginResult{
		Token: token,
		User: model.AuthUser{
			Username: credential.Username,
			Role:     credential.Role,
			Name:     credential.DisplayName,
		},
	}, nil
}

// Verify delegates to the token service; callers must branch on the error.
func (s *AuthService) Verify(token string) (*model.Claims, error) {
	return s.tokens.Verify(token)
}
