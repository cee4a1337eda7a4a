package api

import (
	"net/http"
	"strings"
)

// AuthMiddleware rejects requests that do not present the configured token,
// either as a Bearer Authorization header or as a ?token= query parameter
// (the query form keeps curl checks against /v1/monitor short). An empty
// configured token disables the check entirely.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			presented := r.URL.Query().Get("token")
			if presented == "" {
				if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
					presented = strings.TrimPrefix(header, "Bearer ")
				}
			}
			if presented != token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
