// Package middleware provides HTTP middleware for the PrepPal service.
package middleware

import (
	"net/http"
	"strings"
)

// CORS returns middleware that handles CORS headers for the extension
// surfaces. An allowed origin may end in "*" to accept any origin with that
// prefix, e.g. "chrome-extension://*".
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			w.Header().Add("Vary", "Origin")

			if origin != "" {
				if exact, ok := matchOrigin(allowedOrigins, origin); ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
					w.Header().Set("Access-Control-Max-Age", "600")
					// Credentials only for explicitly listed origins.
					if exact {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
					}
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// matchOrigin reports whether origin is allowed and whether it matched an
// explicit entry rather than a wildcard.
func matchOrigin(allowed []string, origin string) (exact, ok bool) {
	for _, o := range allowed {
		switch {
		case o == origin:
			return true, true
		case o == "*":
			ok = true
		case strings.HasSuffix(o, "*") && strings.HasPrefix(origin, strings.TrimSuffix(o, "*")):
			ok = true
		}
	}
	return false, ok
}
