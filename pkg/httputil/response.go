package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/cetzal/authcore/pkg/errors"
	"github.com/cetzal/authcore/pkg/logger"
	"github.com/cetzal/authcore/pkg/validator"
)

// RetryAfterSeconds is advertised on every 503 so clients back off instead
// of hammering a degraded store.
const RetryAfterSeconds = 1

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err in the error envelope. AppErrors keep their code and
// status; bare sentinels are mapped through apperrors.HTTPStatus. Only the
// public message is rendered, never the wrapped cause. 5xx responses are
// logged with the request-scoped logger when one is present.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	status, body := errorBody(err)
	body.RequestID = logger.CorrelationIDFromContext(r.Context())

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("code", body.Code),
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
	}

	WriteJSON(w, status, Response{Error: body})
}

func errorBody(err error) (int, *ErrorResponse) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Status, &ErrorResponse{Code: appErr.Code, Message: appErr.Message}
	}

	status := apperrors.HTTPStatus(err)
	switch status {
	case http.StatusNotFound:
		return status, &ErrorResponse{Code: "NOT_FOUND", Message: "resource not found"}
	case http.StatusConflict:
		return status, &ErrorResponse{Code: "ALREADY_EXISTS", Message: "resource already exists"}
	case http.StatusBadRequest:
		return status, &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}
	case http.StatusUnauthorized:
		return status, &ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication required"}
	case http.StatusForbidden:
		return status, &ErrorResponse{Code: "FORBIDDEN", Message: "forbidden"}
	case http.StatusServiceUnavailable:
		return status, &ErrorResponse{Code: "SERVICE_UNAVAILABLE", Message: "service temporarily unavailable, retry later"}
	default:
		return http.StatusInternalServerError, &ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
	}
}

// WriteValidationError writes a 400 with field-level messages when err comes
// from the validator package.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:      "VALIDATION_ERROR",
				Message:   "request validation failed",
				Fields:    valErr.Fields(),
				RequestID: requestID,
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error(), RequestID: requestID},
	})
}

// ParseID reads the named chi URL parameter as a positive int64. On failure
// it writes a 400 and returns false so the caller can return early.
func ParseID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:      "INVALID_PARAMETER",
				Message:   "invalid id: " + raw,
				RequestID: logger.CorrelationIDFromContext(r.Context()),
			},
		})
		return 0, false
	}
	return id, true
}
