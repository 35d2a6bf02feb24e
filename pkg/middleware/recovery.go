package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/cetzal/authcore/pkg/httputil"
)

// Recovery turns a handler panic into a 500 error envelope. The panic value
// and stack go to the log only. http.ErrAbortHandler is re-raised so the
// server can drop the connection as intended.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				l.ErrorContext(r.Context(), "panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", v),
					slog.String("stack", string(debug.Stack())),
				)
				httputil.WriteError(w, r, fmt.Errorf("panic in handler: %v", v), l)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
