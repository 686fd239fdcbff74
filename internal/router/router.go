package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"go-user-admin/internal/config"
	"go-user-admin/internal/handler"
	"go-user-admin/internal/metrics"
	"go-user-admin/internal/middleware"
	"go-user-admin/internal/model"
	"go-user-admin/internal/websocket"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Page   *handler.PageHandler
	Docs   *handler.DocsHandler
	Health *handler.HealthHandler
	Events *websocket.Hub
}

// Middlewares are the cross-cutting pieces built by the app from its config.
type Middlewares struct {
	Auth      *middleware.AuthMiddleware
	RateLimit *middleware.RateLimitMiddleware
	Gate      func(http.Handler) http.Handler
	Metrics   *metrics.Metrics
	Tracer    trace.TracerProvider
}

func New(cfg *config.Config, mw Middlewares, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	if mw.Tracer != nil {
		r.Use(middleware.Tracing(mw.Tracer))
	}
	r.Use(middleware.Metrics(mw.Metrics))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	if mw.RateLimit != nil {
		r.Use(mw.RateLimit.Handler)
	}
	if mw.Gate != nil {
		r.Use(mw.Gate)
	}

	r.Get("/health", h.Health.Health)
	if mw.Metrics.Enabled() {
		r.Method(http.MethodGet, "/metrics", mw.Metrics.Handler())
	}
	r.Get("/openapi.yaml", h.Docs.OpenAPI)
	r.Get("/swagger", h.Docs.SwaggerUI)

	r.Route("/api", func(api chi.Router) {
		api.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(cfg.RequestTimeout))

			timed.Route("/auth", func(auth chi.Router) {
				auth.Post("/login", h.Auth.Login)
				auth.Get("/verify", h.Auth.Verify)
				auth.Post("/logout", h.Auth.Logout)
			})

			timed.Route("/admin/users", func(users chi.Router) {
				users.Use(mw.Auth.RequireAuth, mw.Auth.RequireRoles(model.RoleAdmin))

				users.Get("/", h.User.List)
				users.Post("/", h.User.Create)
				users.Get("/stats", h.User.Stats)
				users.Get("/{id}", h.User.Get)
				users.Put("/{id}", h.User.Update)
				users.Patch("/{id}/status", h.User.UpdateStatus)
				users.Delete("/{id}", h.User.Delete)
			})
		})

		// long-lived, so outside the request timeout
		if h.Events != nil {
			api.With(mw.Auth.RequireAuth, mw.Auth.RequireRoles(model.RoleAdmin)).Get("/admin/events", h.Events.ServeWS)
		}
	})

	r.Get("/", h.Page.Home)
	r.Get("/login", h.Page.Login)
	r.Get("/unauthorized", h.Page.Unauthorized)
	r.Get("/dashboard", h.Page.Dashboard)
	r.Get("/dashboard/*", h.Page.Dashboard)
	r.Get("/admin", h.Page.Admin)
	r.Get("/admin/*", h.Page.Admin)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"message":"Not found","error":{"code":"NOT_FOUND","message":"Not found"}}` + "\n"))
			return
		}
		http.NotFound(w, req)
	})

	return r
}
