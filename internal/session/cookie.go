// Package session carries the signed token between browser and server.
package session

import (
	"net/http"
	"strings"
	"time"
)

const CookieName = "token"

// CookieConfig holds the attributes of the session cookie. MaxAge is
// independent of the token lifetime; a cookie may outlive the token it holds.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

func (c CookieConfig) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear expires the cookie in the browser.
func (c CookieConfig) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// TokenFromCookie returns the raw cookie token or "" when absent.
func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// TokenFromRequest prefers the cookie and falls back to a bearer header.
func TokenFromRequest(r *http.Request) string {
	if token := TokenFromCookie(r); token != "" {
		return token
	}
	return BearerToken(r)
}
