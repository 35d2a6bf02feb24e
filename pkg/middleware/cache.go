package middleware

import "net/http"

// NoStore marks responses as uncacheable. Token responses must never land in
// a shared or browser cache (RFC 6749 section 5.1).
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
