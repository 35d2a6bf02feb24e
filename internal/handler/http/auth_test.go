package http

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cetzal/authcore/internal/auth"
	"github.com/cetzal/authcore/internal/domain"
	"github.com/cetzal/authcore/internal/event"
	"github.com/cetzal/authcore/internal/repository/memory"
	"github.com/cetzal/authcore/internal/service"
	apperrors "github.com/cetzal/authcore/pkg/errors"
	"github.com/cetzal/authcore/pkg/httputil"
)

const testSecret = "handler-test-secret-handler-test-secret"

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshBody struct {
	Refresh string `json:"refresh"`
}

func demoUser(t *testing.T) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("12345"), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:           1,
		Username:     "demo",
		FirstName:    "Demo",
		LastName:     "User",
		Email:        "demo@demo.com",
		PasswordHash: string(hash),
		IsActive:     true,
	}
}

// newAuthRouter wires the real auth service over an in-memory blacklist so
// the whole login, refresh and logout cycle runs through HTTP.
func newAuthRouter(t *testing.T, users ...*domain.User) http.Handler {
	t.Helper()
	bl := memory.NewBlacklist()
	t.Cleanup(func() { _ = bl.Close() })

	logger := newTestLogger()
	issuer := auth.NewTokenIssuer(testSecret, "authcore", 15*time.Minute, 24*time.Hour)
	svc := service.NewAuthService(newUserStore(users...), bl, issuer, event.NewProducer(nil, logger),
		service.AuthConfig{RotateRefresh: true}, logger)

	return newTestRouter(svc, new(mockUserService), new(mockProductService))
}

func login(t *testing.T, h http.Handler) LoginResponse {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/auth/login", loginBody{"demo@demo.com", "12345"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[LoginResponse](t, rec)
}

// ============================================================================
// Session lifecycle
// ============================================================================

func TestAuthFlow_LoginRefreshLogout(t *testing.T) {
	h := newAuthRouter(t, demoUser(t))

	rec := doJSON(t, h, http.MethodPost, "/auth/login", loginBody{"demo@demo.com", "12345"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	pair := decodeBody[LoginResponse](t, rec)
	assert.Equal(t, "Demo User", pair.Name)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)

	// Rotation hands out a new refresh token and burns the old one.
	rec = doJSON(t, h, http.MethodPost, "/auth/token/refresh", refreshBody{pair.Refresh}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decodeBody[RefreshResponse](t, rec)
	assert.NotEmpty(t, rotated.Access)
	assert.NotEmpty(t, rotated.Refresh)
	assert.NotEqual(t, pair.Access, rotated.Access)
	assert.NotEqual(t, pair.Refresh, rotated.Refresh)

	rec = doJSON(t, h, http.MethodPost, "/auth/token/refresh", refreshBody{pair.Refresh}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", errorCode(t, rec))

	rec = doJSON(t, h, http.MethodPost, "/auth/logout", refreshBody{rotated.Refresh}, rotated.Access)
	assert.Equal(t, http.StatusResetContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/auth/token/refresh", refreshBody{rotated.Refresh}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", errorCode(t, rec))

	// The access token used for logout is revoked with the session.
	rec = doJSON(t, h, http.MethodPost, "/auth/logout", refreshBody{rotated.Refresh}, rotated.Access)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", errorCode(t, rec))
}

func TestLogout_AlreadyRevokedRefreshIsIdempotent(t *testing.T) {
	h := newAuthRouter(t, demoUser(t))
	first := login(t, h)
	second := login(t, h)

	rec := doJSON(t, h, http.MethodPost, "/auth/logout", refreshBody{first.Refresh}, first.Access)
	require.Equal(t, http.StatusResetContent, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/auth/logout", refreshBody{first.Refresh}, second.Access)
	assert.Equal(t, http.StatusResetContent, rec.Code)
}

func TestLogin_UnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	h := newAuthRouter(t, demoUser(t))

	wrong := doJSON(t, h, http.MethodPost, "/auth/login", loginBody{"demo@demo.com", "nope"}, "")
	unknown := doJSON(t, h, http.MethodPost, "/auth/login", loginBody{"ghost@demo.com", "12345"}, "")

	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)

	a := decodeBody[httputil.Response](t, wrong).Error
	b := decodeBody[httputil.Response](t, unknown).Error
	assert.Equal(t, "INVALID_CREDENTIALS", a.Code)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Message, b.Message)
}

func TestLogin_DisabledAccount(t *testing.T) {
	u := demoUser(t)
	u.IsActive = false
	h := newAuthRouter(t, u)

	rec := doJSON(t, h, http.MethodPost, "/auth/login", loginBody{"demo@demo.com", "12345"}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACCOUNT_DISABLED", errorCode(t, rec))
}

func TestLogin_ValidationError(t *testing.T) {
	h := newAuthRouter(t, demoUser(t))

	rec := doJSON(t, h, http.MethodPost, "/auth/login", loginBody{Email: "not-an-email"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestLogout_WithoutBearer(t *testing.T) {
	h := newAuthRouter(t, demoUser(t))
	pair := login(t, h)

	rec := doJSON(t, h, http.MethodPost, "/auth/logout", refreshBody{pair.Refresh}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
}

func TestLogout_MalformedRefresh(t *testing.T) {
	h := newAuthRouter(t, demoUser(t))
	pair := login(t, h)

	rec := doJSON(t, h, http.MethodPost, "/auth/logout", refreshBody{"not.a.jwt"}, pair.Access)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MALFORMED_TOKEN", errorCode(t, rec))
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	h := newAuthRouter(t, demoUser(t))
	pair := login(t, h)

	rec := doJSON(t, h, http.MethodPost, "/auth/token/refresh", refreshBody{pair.Access}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MALFORMED_TOKEN", errorCode(t, rec))
}

// ============================================================================
// Error rendering
// ============================================================================

func TestRefresh_StoreUnavailable_RetryAfter(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("Refresh", mock.Anything, "r1").
		Return(nil, apperrors.Unavailable(errors.New("dial tcp: connection refused")))
	h := newTestRouter(svc, new(mockUserService), new(mockProductService))

	rec := doJSON(t, h, http.MethodPost, "/auth/token/refresh", refreshBody{"r1"}, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotContains(t, rec.Body.String(), "connection refused")
	svc.AssertExpectations(t)
}

func TestRefresh_WithoutRotationOmitsRefresh(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("Refresh", mock.Anything, "r1").Return(&domain.RefreshResult{AccessToken: "a2"}, nil)
	h := newTestRouter(svc, new(mockUserService), new(mockProductService))

	rec := doJSON(t, h, http.MethodPost, "/auth/token/refresh", refreshBody{"r1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"access":"a2"}`, rec.Body.String())
}

func TestLogout_PassesCallerClaims(t *testing.T) {
	svc := new(mockAuthService)
	svc.allowBearer()
	svc.On("Logout", mock.Anything, mock.MatchedBy(func(c domain.TokenClaims) bool {
		return c.Subject == "1" && c.TokenID == "access-jti" && c.Kind == domain.TokenAccess
	}), "r1").Return(nil)
	h := newTestRouter(svc, new(mockUserService), new(mockProductService))

	rec := doJSON(t, h, http.MethodPost, "/auth/logout", refreshBody{"r1"}, testBearer)
	assert.Equal(t, http.StatusResetContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestLogin_WrongContentType(t *testing.T) {
	h := newTestRouter(new(mockAuthService), new(mockUserService), new(mockProductService))

	rec := doJSON(t, h, http.MethodPost, "/auth/login", nil, "")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", errorCode(t, rec))
}
