package middleware

import (
	"encoding/json"
	"net/http"

	"go-user-admin/internal/model"
)

func jsonEncode(w http.ResponseWriter, value any) error {
	return json.NewEncoder(w).Encode(value)
}

func writeErrorJSON(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Message: message,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
