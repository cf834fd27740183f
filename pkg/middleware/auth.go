package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/genbaworks/tally/pkg/httputil"
)

// AdminAuthMiddleware guards the administrative trigger surface with a
// shared secret. Tokens are compared in constant time.
type AdminAuthMiddleware struct {
	token string
}

// NewAdminAuthMiddleware creates a new admin authentication middleware.
// An empty token disables the surface entirely: every request is rejected
// until an operator configures one.
func NewAdminAuthMiddleware(token string) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{token: token}
}

// Handler wraps an HTTP handler with admin authentication
func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.token == "" {
			httputil.WriteUnauthorized(w, "admin surface is not configured")
			return
		}

		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(m.token)) != 1 {
			httputil.WriteUnauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
