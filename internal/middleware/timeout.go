package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-user-admin/internal/model"
)

func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	body, _ := json.Marshal(model.APIResponse{
		Success: false,
		Message: "request timed out",
		Error:   &model.APIError{Code: "REQUEST_TIMEOUT", Message: "request timed out"},
	})
	message := string(body)

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}
