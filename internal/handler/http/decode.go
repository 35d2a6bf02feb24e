package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cetzal/authcore/pkg/httputil"
	"github.com/cetzal/authcore/pkg/validator"
)

// decode reads and validates a JSON body into dst. On failure it writes the
// error response and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any, l *slog.Logger) bool {
	err := validator.DecodeAndValidate(w, r, dst)
	if err == nil {
		return true
	}
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteValidationError(w, r, err)
		return false
	}
	httputil.WriteError(w, r, err, l)
	return false
}

// queryInt returns the integer query parameter, or nil when it is absent or
// does not parse.
func queryInt(r *http.Request, key string) *int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return nil
	}
	return &v
}

// queryBool returns nil when key is absent. A present value is true only for
// true/1/yes (case-insensitive); anything else, including empty, is false.
func queryBool(r *http.Request, key string) *bool {
	q := r.URL.Query()
	if !q.Has(key) {
		return nil
	}
	var b bool
	switch strings.ToLower(strings.TrimSpace(q.Get(key))) {
	case "true", "1", "yes":
		b = true
	}
	return &b
}
