package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-user-admin/internal/model"
)

// tokenClaims is the wire form of model.Claims inside the JWT payload.
type tokenClaims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type TokenOption func(*TokenService)

// WithClock replaces the wall clock used for both issuing and verifying.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewTokenService(secret string, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token signing secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}

	s := &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for subject valid for the configured TTL from now.
func (s *TokenService) Issue(subject string, role model.Role) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("%w: token subject is required", model.ErrInvalidInput)
	}
	if !role.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", model.ErrInvalidInput, role)
	}

	now := s.now().UTC()
	claims := &tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the signature and expiry of tokenString. A token is valid
// while now < exp; at exp it is already expired. Failures are reported as
// model.ErrTokenMalformed, model.ErrTokenSignature or model.ErrTokenExpired.
func (s *TokenService) Verify(tokenString string) (*model.Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, model.ErrTokenMalformed
	}

	parsed := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, parsed, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, model.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, model.ErrTokenSignature
		default:
			return nil, model.ErrTokenMalformed
		}
	}
	if !token.Valid {
		return nil, model.ErrTokenMalformed
	}

	if parsed.Subject == "" || !parsed.Role.IsValid() || parsed.IssuedAt == nil {
		return nil, model.ErrTokenMalformed
	}

	return &model.Claims{
		Subject:   parsed.Subject,
		Role:      parsed.Role,
		IssuedAt:  parsed.IssuedAt.Time.UTC(),
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
	}, nil
}

// FailureReason names a Verify error for logs and metrics.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, model.ErrTokenExpired):
		return "expired"
	case errors.Is(err, model.ErrTokenSignature):
		return "signature"
	case errors.Is(err, model.ErrTokenMalformed):
		return "malformed"
	default:
		return "error"
	}
}
