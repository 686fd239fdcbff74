// Package gate decides whether a page navigation may proceed.
package gate

import (
	"path"
	"strings"

	"go-user-admin/internal/model"
)

const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

const adminPrefix = "/admin"

var protectedPrefixes = []string{adminPrefix, "/dashboard"}

type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	RedirectUnauthorized
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Input is everything a decision depends on. Claims is nil when no token was
// presented or when the presented token failed verification.
type Input struct {
	Path         string
	TokenPresent bool
	Claims       *model.Claims
}

type Decision struct {
	Outcome  Outcome
	Location string
}

// Decide applies the gate policy to a navigation:
//
//	unprotected path                  -> allow
//	no token                          -> login
//	token that failed verification    -> login
//	admin path, role other than admin -> unauthorized
//	otherwise                         -> allow
func Decide(in Input) Decision {
	p := cleanPath(in.Path)
	if !IsProtected(p) {
		return Decision{Outcome: Allow}
	}

	if !in.TokenPresent || in.Claims == nil {
		return Decision{Outcome: RedirectLogin, Location: LoginPath}
	}

	if IsAdminPath(p) && !in.Claims.IsAdmin() {
		return Decision{Outcome: RedirectUnauthorized, Location: UnauthorizedPath}
	}

	return Decision{Outcome: Allow}
}

// IsProtected reports whether p is /admin, /dashboard or below either.
func IsProtected(p string) bool {
	p = cleanPath(p)
	for _, prefix := range protectedPrefixes {
		if underPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func IsAdminPath(p string) bool {
	return underPrefix(cleanPath(p), adminPrefix)
}

func underPrefix(p string, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
