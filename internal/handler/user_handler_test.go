package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-user-admin/internal/middleware"
	"go-user-admin/internal/model"
	"go-user-admin/internal/repository"
	"go-user-admin/internal/service"
)

// newUserRouter mounts the user handler the way the app does, with the caller
// identity injected instead of verified.
func newUserRouter(t *testing.T, actor string) http.Handler {
	t.Helper()

	h := NewUserHandler(service.NewUserService(repository.NewMemoryUserRepository(), nil))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims := &model.Claims{Subject: actor, Role: model.RoleAdmin, IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
			next.ServeHTTP(w, req.WithContext(middleware.WithClaims(req.Context(), claims)))
		})
	})
	r.Get("/users", h.List)
	r.Post("/users", h.Create)
	r.Get("/users/stats", h.Stats)
	r.Get("/users/{id}", h.Get)
	r.Put("/users/{id}", h.Update)
	r.Patch("/users/{id}/status", h.UpdateStatus)
	r.Delete("/users/{id}", h.Delete)
	return r
}

func serve(h http.Handler, method string, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createUser(t *testing.T, h http.Handler, body string) model.DirectoryUser {
	t.Helper()

	rec := serve(h, http.MethodPost, "/users", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var user model.DirectoryUser
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &user))
	return user
}

func TestUserHandler_CRUD(t *testing.T) {
	h := newUserRouter(t, "admin")

	created := createUser(t, h, `{"username":"jdoe","name":"Jane Doe","email":"jane@example.com"}`)
	assert.Equal(t, model.RoleUser, created.Role)
	assert.Equal(t, model.StatusActive, created.Status)

	rec := serve(h, http.MethodGet, "/users/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodPut, "/users/"+created.ID, `{"username":"jdoe","name":"Jane Q. Doe","email":"jane@example.com","role":"manager","status":"active"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated model.DirectoryUser
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &updated))
	assert.Equal(t, "Jane Q. Doe", updated.Name)
	assert.Equal(t, model.RoleManager, updated.Role)

	rec = serve(h, http.MethodPatch, "/users/"+created.ID+"/status", `{"status":"Suspended"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(h, http.MethodDelete, "/users/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodGet, "/users/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, rec).Error.Code)
}

func TestUserHandler_ListFilters(t *testing.T) {
	h := newUserRouter(t, "admin")

	createUser(t, h, `{"username":"admin","name":"Administrator","email":"admin@example.com","role":"admin"}`)
	createUser(t, h, `{"username":"jdoe","name":"Jane Doe","email":"jane@example.com","status":"inactive"}`)
	createUser(t, h, `{"username":"bsmith","name":"Bob Smith","email":"bob@example.com"}`)

	list := func(query string) []model.DirectoryUser {
		rec := serve(h, http.MethodGet, "/users"+query, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out model.DirectoryUserList
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &out))
		return out.Users
	}

	assert.Len(t, list(""), 3)
	assert.Len(t, list("?role=admin"), 1)
	assert.Len(t, list("?status=active"), 2)
	assert.Len(t, list("?q=SMITH"), 1)

	rec := serve(h, http.MethodGet, "/users?role=root", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodGet, "/users/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats model.UserStats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Admins)
}

func TestUserHandler_Errors(t *testing.T) {
	h := newUserRouter(t, "admin")

	self := createUser(t, h, `{"username":"admin","name":"Administrator","email":"admin@example.com","role":"admin"}`)

	t.Run("malformed body", func(t *testing.T) {
		rec := serve(h, http.MethodPost, "/users", `{"username":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid payload", func(t *testing.T) {
		rec := serve(h, http.MethodPost, "/users", `{"username":"x","name":"X","email":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("duplicate username", func(t *testing.T) {
		rec := serve(h, http.MethodPost, "/users", `{"username":"ADMIN","name":"Other","email":"other@example.com"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "ALREADY_EXISTS", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("admin status is protected", func(t *testing.T) {
		rec := serve(h, http.MethodPatch, "/users/"+self.ID+"/status", `{"status":"inactive"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "CONFLICT", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("cannot delete own record", func(t *testing.T) {
		rec := serve(h, http.MethodDelete, "/users/"+self.ID, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestUserHandler_DeleteRequiresIdentity(t *testing.T) {
	h := NewUserHandler(service.NewUserService(repository.NewMemoryUserRepository(), nil))

	rec := httptest.NewRecorder()
	h.Delete(rec, httptest.NewRequest(http.MethodDelete, "/users/abc", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
