package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminKeyHeader authenticates the CMS on the admin endpoints.
const AdminKeyHeader = "X-Admin-Key"

// AdminKeyMiddleware guards the admin API with a shared key. An empty
// configured key disables the admin surface entirely rather than leaving it
// open.
type AdminKeyMiddleware struct {
	key string
}

// NewAdminKeyMiddleware creates a new admin key middleware
func NewAdminKeyMiddleware(key string) *AdminKeyMiddleware {
	return &AdminKeyMiddleware{key: key}
}

// Authenticate validates the admin key header
func (m *AdminKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.key == "" {
			respondWithError(w, http.StatusForbidden, "Admin API disabled")
			return
		}
		provided := r.Header.Get(AdminKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(m.key)) != 1 {
			respondWithError(w, http.StatusUnauthorized, "Invalid admin key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
