package handler

import (
	"context"
	"net/http"
	"time"

	"go-user-admin/internal/model"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{checks: map[string]HealthCheck{}, timeout: 2 * time.Second}
}

// Register adds a named dependency check.
func (h *HealthHandler) Register(name string, check HealthCheck) {
	h.checks[name] = check
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	results := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	writeJSON(w, status, apiHealth(status == http.StatusOK, results))
}

func apiHealth(ok bool, checks map[string]string) model.APIResponse {
	status := "ok"
	if !ok {
		status = "degraded"
	}
	return model.APIResponse{
		Success: ok,
		Data:    map[string]any{"status": status, "checks": checks},
	}
}
