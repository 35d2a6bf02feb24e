package middleware

import (
	"log/slog"
	"net/http"

	"github.com/cetzal/authcore/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation_id, user_id,
// trace_id and span_id in the request context; handlers fetch it with
// logger.FromContext.
//
// Mount it after RequestLogging and Tracing. Auth appends user_id to the
// stored logger once the token is verified; the X-User-ID header is never
// trusted.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.NewContext(r.Context(), logger.WithContext(r.Context(), base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
