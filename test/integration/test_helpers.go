//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-user-admin/internal/config"
	"go-user-admin/internal/event"
	"go-user-admin/internal/handler"
	"go-user-admin/internal/metrics"
	"go-user-admin/internal/middleware"
	"go-user-admin/internal/model"
	"go-user-admin/internal/repository"
	"go-user-admin/internal/router"
	"go-user-admin/internal/service"
	"go-user-admin/internal/session"
	"go-user-admin/internal/websocket"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	User    json.RawMessage `json:"user"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		AppEnv:              "test",
		ServerPort:          "8080",
		RequestTimeout:      10 * time.Second,
		JWTSecret:           "integration-secret",
		JWTTTL:              2 * time.Hour,
		SessionCookieMaxAge: 168 * time.Hour,
		CORSOrigins:         []string{"*"},
		RateLimitRPM:        1000,
		AuthRateLimitRPM:    1000,
	}

	tokens, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	require.NoError(t, err)
	credentials, err := repository.NewCredentialRepository([]model.Credential{
		{Username: "admin", Password: "123", Role: model.RoleAdmin, DisplayName: "Administrator"},
		{Username: "user", Password: "123", Role: model.RoleUser, DisplayName: "Regular User"},
	})
	require.NoError(t, err)

	store := repository.NewMemoryUserRepository()
	_, err = repository.SeedUsers(context.Background(), store, time.Now().UTC())
	require.NoError(t, err)

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	userService := service.NewUserService(store, bus)
	authService := service.NewAuthService(credentials, tokens)
	authService.SetLoginRecorder(userService)

	pages, err := handler.NewPageHandler()
	require.NoError(t, err)

	m := metrics.New(true)
	handlerChain := router.New(cfg, router.Middlewares{
		Auth:      middleware.NewAuthMiddleware(tokens, m),
		RateLimit: middleware.NewRateLimitMiddleware(middleware.NewLocalLimiter(cfg.RateLimitRPM), middleware.NewLocalLimiter(cfg.AuthRateLimitRPM)),
		Gate:      middleware.RouteGate(tokens, m),
		Metrics:   m,
	}, router.Handlers{
		Auth:   handler.NewAuthHandler(authService, session.CookieConfig{MaxAge: cfg.SessionCookieMaxAge}, m),
		User:   handler.NewUserHandler(userService),
		Page:   pages,
		Docs:   handler.NewDocsHandler(),
		Health: handler.NewHealthHandler(),
		Events: hub,
	})

	server := httptest.NewServer(handlerChain)
	t.Cleanup(server.Close)
	return server
}

// newBrowser returns a client that keeps cookies and does not follow redirects.
func newBrowser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func do(t *testing.T, client *http.Client, method string, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, payload
}

func decode(t *testing.T, payload []byte) envelope {
	t.Helper()

	var body envelope
	require.NoError(t, json.Unmarshal(payload, &body), string(payload))
	return body
}

func loginAs(t *testing.T, client *http.Client, server *httptest.Server, username string) {
	t.Helper()

	resp, payload := do(t, client, http.MethodPost, server.URL+"/api/auth/login", map[string]string{"username": username, "password": "123"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(payload))
}
