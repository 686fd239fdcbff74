package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"go-user-admin/internal/metrics"
	"go-user-admin/internal/model"
	"go-user-admin/internal/service"
	"go-user-admin/internal/session"
)

type tokenVerifier interface {
	Verify(tokenString string) (*model.Claims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	verifier tokenVerifier
	metrics  *metrics.Metrics
}

func NewAuthMiddleware(verifier tokenVerifier, m *metrics.Metrics) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, metrics: m}
}

// RequireAuth verifies the session cookie, or a bearer token when no cookie
// is sent, and stores the claims in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := session.TokenFromRequest(r)
		if token == "" {
			m.metrics.RecordVerification("missing")
			writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}

		claims, err := m.verifier.Verify(token)
		m.metrics.RecordVerification(service.FailureReason(err))
		if err != nil {
			slog.Debug("token rejected", "reason", service.FailureReason(err), "path", r.URL.Path)
			writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m *AuthMiddleware) RequireRoles(allowedRoles ...model.Role) func(http.Handler) http.Handler {
	roleSet := map[model.Role]struct{}{}
	for _, role := range allowedRoles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			if _, exists := roleSet[claims.Role]; !exists {
				writeErrorJSON(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims attaches claims verified during this request. A nil claims value
// leaves ctx unchanged.
func WithClaims(ctx context.Context, claims *model.Claims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, authClaimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*model.Claims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.Claims)
	return claims, ok && claims != nil
}
