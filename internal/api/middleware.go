// Package api implements the obridge HTTP trigger surface using chi.
package api

import (
	"net/http"
	"strings"
)

// AuthMiddleware guards the pipeline triggers, exclusion routes and the
// event stream with the configured auth.token. With auth disabled every
// request reaches the vault; otherwise a missing or wrong bearer token is
// answered with 401 before any run starts.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
