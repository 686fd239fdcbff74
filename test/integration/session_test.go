//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-user-admin/internal/model"
)

func TestRouteGateWithoutSession(t *testing.T) {
	server := newTestServer(t)
	browser := newBrowser(t)

	for _, path := range []string{"/dashboard", "/dashboard/settings", "/admin", "/admin/users"} {
		resp, _ := do(t, browser, http.MethodGet, server.URL+path, nil)
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}

	for _, path := range []string{"/", "/login", "/administrator"} {
		resp, _ := do(t, browser, http.MethodGet, server.URL+path, nil)
		assert.NotEqual(t, http.StatusTemporaryRedirect, resp.StatusCode, path)
	}
}

func TestUserSessionLifecycle(t *testing.T) {
	server := newTestServer(t)
	browser := newBrowser(t)

	loginAs(t, browser, server, "user")

	resp, payload := do(t, browser, http.MethodGet, server.URL+"/api/auth/verify", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var claims model.Claims
	require.NoError(t, json.Unmarshal(decode(t, payload).User, &claims))
	assert.Equal(t, "user", claims.Subject)
	assert.Equal(t, model.RoleUser, claims.Role)

	resp, payload = do(t, browser, http.MethodGet, server.URL+"/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(payload), "Welcome, user")

	resp, _ = do(t, browser, http.MethodGet, server.URL+"/admin", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/unauthorized", resp.Header.Get("Location"))

	resp, _ = do(t, browser, http.MethodGet, server.URL+"/api/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, browser, http.MethodPost, server.URL+"/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, browser, http.MethodGet, server.URL+"/dashboard", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, payload = do(t, browser, http.MethodGet, server.URL+"/api/auth/verify", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "No token provided", decode(t, payload).Message)
}

func TestTamperedCookieIsRejected(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/dashboard", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "token", Value: "eyJhbGciOiJIUzI1NiJ9.e30.forged"})

	resp, err := newBrowser(t).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestLoginRejections(t *testing.T) {
	server := newTestServer(t)
	browser := newBrowser(t)

	resp, payload := do(t, browser, http.MethodPost, server.URL+"/api/auth/login", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", decode(t, payload).Message)
	assert.Empty(t, resp.Cookies())

	resp, payload = do(t, browser, http.MethodPost, server.URL+"/api/auth/login", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Username and password are required", decode(t, payload).Message)
}

func TestAdminManagesDirectory(t *testing.T) {
	server := newTestServer(t)
	browser := newBrowser(t)

	loginAs(t, browser, server, "admin")

	resp, payload := do(t, browser, http.MethodGet, server.URL+"/admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(payload), "/api/admin/users"))

	resp, payload = do(t, browser, http.MethodGet, server.URL+"/api/admin/users", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list model.DirectoryUserList
	require.NoError(t, json.Unmarshal(decode(t, payload).Data, &list))
	require.Len(t, list.Users, 3)

	resp, payload = do(t, browser, http.MethodPost, server.URL+"/api/admin/users", map[string]string{
		"username": "jdoe", "name": "Jane Doe", "email": "jane@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(payload))
	var created model.DirectoryUser
	require.NoError(t, json.Unmarshal(decode(t, payload).Data, &created))

	resp, _ = do(t, browser, http.MethodPatch, server.URL+"/api/admin/users/"+created.ID+"/status", map[string]string{"status": "suspended"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var admin model.DirectoryUser
	for _, u := range list.Users {
		if u.Username == "admin" {
			admin = u
		}
	}
	require.NotEmpty(t, admin.ID)

	resp, _ = do(t, browser, http.MethodPatch, server.URL+"/api/admin/users/"+admin.ID+"/status", map[string]string{"status": "inactive"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, browser, http.MethodDelete, server.URL+"/api/admin/users/"+admin.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, browser, http.MethodDelete, server.URL+"/api/admin/users/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = do(t, browser, http.MethodGet, server.URL+"/api/admin/users/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats model.UserStats
	require.NoError(t, json.Unmarshal(decode(t, payload).Data, &stats))
	assert.Equal(t, 3, stats.Total)
}

func TestAdminAPIAcceptsBearerToken(t *testing.T) {
	server := newTestServer(t)

	resp, _ := do(t, newBrowser(t), http.MethodPost, server.URL+"/api/auth/login", map[string]string{"username": "admin", "password": "123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var token string
	for _, c := range resp.Cookies() {
		if c.Name == "token" {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/admin/users", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	apiResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer apiResp.Body.Close()
	assert.Equal(t, http.StatusOK, apiResp.StatusCode)

	resp, _ = do(t, http.DefaultClient, http.MethodGet, server.URL+"/api/admin/users", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOperationalEndpoints(t *testing.T) {
	server := newTestServer(t)
	client := newBrowser(t)

	resp, _ := do(t, client, http.MethodGet, server.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	loginAs(t, client, server, "user")
	resp, payload := do(t, client, http.MethodGet, server.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(payload), `user_admin_logins_total{result="success"} 1`)

	resp, _ = do(t, client, http.MethodGet, server.URL+"/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = do(t, client, http.MethodGet, server.URL+"/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, decode(t, payload).Success)
}
