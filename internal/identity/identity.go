// Package identity authenticates operators of the HTTP surface.
package identity

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

const (
	// AuthHeaderName carries the operator token as "Bearer <token>".
	AuthHeaderName = "Authorization"
	bearerScheme   = "bearer"
)

func tokenFromRequest(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get(AuthHeaderName)), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

func validToken(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// Middleware admits only requests carrying the operator token. An empty
// token rejects every request.
func Middleware(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !validToken(token, tokenFromRequest(r)) {
				logger.Warn("Rejected unauthenticated ops request", "path", r.URL.Path, "ip", IPFromRequest(r))
				w.Header().Set("WWW-Authenticate", `Bearer realm="botfactory"`)
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPFromRequest returns a normalized remote IP for request logging.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
