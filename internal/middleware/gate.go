package middleware

import (
	"log/slog"
	"net/http"

	"go-user-admin/internal/gate"
	"go-user-admin/internal/metrics"
	"go-user-admin/internal/service"
	"go-user-admin/internal/session"
)

// RouteGate guards page navigation under /admin and /dashboard. Other paths
// pass through without touching the cookie. On allow, the claims verified
// here are the only identity the page handler sees.
func RouteGate(verifier tokenVerifier, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !gate.IsProtected(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := session.TokenFromCookie(r)
			in := gate.Input{Path: r.URL.Path, TokenPresent: token != ""}
			if in.TokenPresent {
				claims, err := verifier.Verify(token)
				m.RecordVerification(service.FailureReason(err))
				if err == nil {
					in.Claims = claims
				} else {
					slog.Debug("gate rejected token", "reason", service.FailureReason(err), "path", r.URL.Path)
				}
			}

			decision := gate.Decide(in)
			m.RecordGateDecision(decision.Outcome.String())

			if decision.Outcome != gate.Allow {
				http.Redirect(w, r, decision.Location, http.StatusTemporaryRedirect)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), in.Claims)))
		})
	}
}
