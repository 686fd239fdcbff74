package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"go-user-admin/internal/gate"
	"go-user-admin/internal/middleware"
	"go-user-admin/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

type pageData struct {
	Title string
	User  *model.Claims
}

// PageHandler renders the server-side pages. Protected pages take the
// identity from claims the route gate verified for this request.
type PageHandler struct {
	pages map[string]*template.Template
}

func NewPageHandler() (*PageHandler, error) {
	pages := map[string]*template.Template{}
	for _, name := range []string{"index", "login", "dashboard", "admin", "unauthorized"} {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &PageHandler{pages: pages}, nil
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "index", pageData{Title: "Home"})
}

func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "login", pageData{Title: "Sign in"})
}

func (h *PageHandler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusForbidden, "unauthorized", pageData{Title: "Access denied"})
}

func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, gate.LoginPath, http.StatusTemporaryRedirect)
		return
	}
	h.render(w, http.StatusOK, "dashboard", pageData{Title: "Dashboard", User: claims})
}

func (h *PageHandler) Admin(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, gate.LoginPath, http.StatusTemporaryRedirect)
		return
	}
	if !claims.IsAdmin() {
		http.Redirect(w, r, gate.UnauthorizedPath, http.StatusTemporaryRedirect)
		return
	}
	h.render(w, http.StatusOK, "admin", pageData{Title: "Admin", User: claims})
}

func (h *PageHandler) render(w http.ResponseWriter, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("render page", "page", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
