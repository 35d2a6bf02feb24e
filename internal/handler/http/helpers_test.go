package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cetzal/authcore/internal/domain"
	"github.com/cetzal/authcore/internal/service"
	apperrors "github.com/cetzal/authcore/pkg/errors"
	"github.com/cetzal/authcore/pkg/health"
	"github.com/cetzal/authcore/pkg/httputil"
)

const testBearer = "valid-access-token"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// Mock Services
// ============================================================================

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoginResult), args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, access domain.TokenClaims, refreshToken string) error {
	args := m.Called(ctx, access, refreshToken)
	return args.Error(0)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*domain.RefreshResult, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshResult), args.Error(1)
}

func (m *mockAuthService) Authenticate(ctx context.Context, accessToken string) (domain.TokenClaims, error) {
	args := m.Called(ctx, accessToken)
	return args.Get(0).(domain.TokenClaims), args.Error(1)
}

// allowBearer makes testBearer authenticate as user 1; anything else is
// rejected as malformed.
func (m *mockAuthService) allowBearer() {
	m.On("Authenticate", mock.Anything, testBearer).
		Return(domain.TokenClaims{Subject: "1", TokenID: "access-jti", Kind: domain.TokenAccess}, nil).Maybe()
	m.On("Authenticate", mock.Anything, mock.Anything).
		Return(domain.TokenClaims{}, apperrors.Unauthorized("invalid access token")).Maybe()
}

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) Create(ctx context.Context, input service.CreateUserInput) (*domain.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserService) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.User), args.Int(1), args.Error(2)
}

func (m *mockUserService) Update(ctx context.Context, id int64, in domain.UserUpdate) (*domain.User, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockProductService struct {
	mock.Mock
}

func (m *mockProductService) Create(ctx context.Context, input service.CreateProductInput) (*domain.Product, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductService) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductService) Update(ctx context.Context, id int64, in domain.ProductUpdate) (*domain.Product, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ============================================================================
// In-memory credential store
// ============================================================================

// userStore is a minimal repository.UserRepository keyed by id.
type userStore struct {
	mu    sync.Mutex
	users map[int64]*domain.User
}

func newUserStore(users ...*domain.User) *userStore {
	s := &userStore{users: make(map[int64]*domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *userStore) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = int64(len(s.users) + 1)
	s.users[u.ID] = u
	return nil
}

func (s *userStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperrors.NotFound("user", "")
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user", email)
}

func (s *userStore) List(context.Context, domain.UserFilter) ([]domain.User, int, error) {
	return nil, 0, nil
}

func (s *userStore) Update(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *userStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *userStore) ExistsByUsernameOrEmail(context.Context, string, string) (bool, error) {
	return false, nil
}

// ============================================================================
// Helpers
// ============================================================================

func newTestRouter(a AuthService, u UserService, p ProductService) http.Handler {
	return NewRouter(RouterDeps{
		Auth:        a,
		Users:       u,
		Products:    p,
		Health:      health.NewHandler(),
		ServiceName: "authcore-test",
		Logger:      newTestLogger(),
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeBody[httputil.Response](t, rec)
	require.NotNil(t, resp.Error, "expected an error envelope, got %s", rec.Body.String())
	return resp.Error.Code
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }
