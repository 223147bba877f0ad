package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware gates a route subtree behind a static Bearer token. The
// scheme prefix is case sensitive and the token comparison is constant
// time.
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := bearerCredential(r)
			if !ok || !constantTimeEqual(presented, token) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerCredential extracts the credential from an Authorization header
// of the form "Bearer <token>".
func bearerCredential(r *http.Request) (string, bool) {
	return strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// constantTimeEqual reports whether a equals b without a data-dependent
// early exit.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
