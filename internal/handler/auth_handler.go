package handler

import (
	"net/http"

	"go-user-admin/internal/metrics"
	"go-user-admin/internal/model"
	"go-user-admin/internal/service"
	"go-user-admin/internal/session"
	"go-user-admin/pkg/apierror"
)

type AuthHandler struct {
	service *service.AuthService
	cookie  session.CookieConfig
	metrics *metrics.Metrics
}

func NewAuthHandler(service *service.AuthService, cookie session.CookieConfig, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{service: service, cookie: cookie, metrics: m}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, apierror.Validation("Username and password are required", err.Error()))
		return
	}

	result, err := h.service.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		if status, ok := apierror.StatusOf(err); ok && status == http.StatusUnauthorized {
			h.metrics.RecordLogin("invalid")
		} else {
			h.metrics.RecordLogin("error")
		}
		writeError(w, err)
		return
	}

	h.metrics.RecordLogin("success")
	h.cookie.Set(w, result.Token)
	writeJSON(w, http.StatusOK, model.APIResponse{
		Success: true,
		Message: "Login successful",
		User:    result.User,
	})
}

// Verify reports the identity carried by the session cookie. Nothing is
// cached; every call re-checks signature and expiry.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := session.TokenFromCookie(r)
	if token == "" {
		h.metrics.RecordVerification("missing")
		writeError(w, apierror.Unauthorized("No token provided", ""))
		return
	}

	claims, err := h.service.Verify(token)
	h.metrics.RecordVerification(service.FailureReason(err))
	if err != nil {
		writeError(w, apierror.Unauthorized("Invalid token", service.FailureReason(err)))
		return
	}

	writeJSON(w, http.StatusOK, model.APIResponse{
		Success: true,
		User:    claims,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookie.Clear(w)
	writeJSON(w, http.StatusOK, model.APIResponse{
		Success: true,
		Message: "Logged out",
	})
}
