package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// AgentToken returns an HTTP middleware that requires the X-Agent-Token
// header to match the configured shared token. Comparison is constant time.
func AgentToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Agent-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      "unauthorized",
					"code":       "AUTH_ERROR",
					"request_id": RequestIDFromContext(r.Context()),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
