package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cetzal/authcore/internal/domain"
	"github.com/cetzal/authcore/pkg/httputil"
	"github.com/cetzal/authcore/pkg/middleware"
)

// AuthService is the session lifecycle the auth endpoints expose.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)
	Logout(ctx context.Context, access domain.TokenClaims, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*domain.RefreshResult, error)
	Authenticate(ctx context.Context, accessToken string) (domain.TokenClaims, error)
}

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// RefreshRequest is the JSON request body for logout and token refresh.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// --- Response types ---

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Name    string `json:"name"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RefreshResponse carries the new access token and, when rotating, the new
// refresh token.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// --- Handlers ---

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		Name:    res.Name,
		Access:  res.Pair.AccessToken,
		Refresh: res.Pair.RefreshToken,
	})
}

// Logout handles POST /auth/logout. It requires a bearer access token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	if err := h.service.Logout(r.Context(), accessClaims(r.Context()), req.Refresh); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusResetContent)
}

// Refresh handles POST /auth/token/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	res, err := h.service.Refresh(r.Context(), req.Refresh)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RefreshResponse{
		Access:  res.AccessToken,
		Refresh: res.RefreshToken,
	})
}

// Verifier adapts the service to the bearer middleware.
func (h *AuthHandler) Verifier() middleware.TokenVerifier {
	return func(ctx context.Context, token string) (*middleware.Claims, error) {
		c, err := h.service.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID:    c.Subject,
			Email:     c.Email,
			Name:      c.Name,
			TokenID:   c.TokenID,
			ExpiresAt: c.ExpiresAt,
		}, nil
	}
}

// accessClaims rebuilds the caller's access token claims from the context
// the bearer middleware populated.
func accessClaims(ctx context.Context) domain.TokenClaims {
	c := middleware.ClaimsFromContext(ctx)
	if c == nil {
		return domain.TokenClaims{}
	}
	return domain.TokenClaims{
		Subject:   c.UserID,
		TokenID:   c.TokenID,
		Kind:      domain.TokenAccess,
		ExpiresAt: c.ExpiresAt,
		Email:     c.Email,
		Name:      c.Name,
	}
}
