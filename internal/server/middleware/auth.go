package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// healthPath stays reachable without a key so liveness checks keep working
// on locked down deployments.
const healthPath = "/api/health"

// Auth returns middleware that gates the API behind the key configured as
// [server] api_key. Clients present it either as "Authorization: Bearer
// <key>" or in the X-API-Key header. An empty key disables the gate.
func Auth(apiKey string) func(http.Handler) http.Handler {
	key := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == healthPath {
				next.ServeHTTP(w, r)
				return
			}
			if subtle.ConstantTimeCompare([]byte(requestKey(r)), key) != 1 {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"missing or invalid api key"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestKey extracts the presented key. The Bearer token wins when both
// headers are set.
func requestKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if scheme, rest, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
