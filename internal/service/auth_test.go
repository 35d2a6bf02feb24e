package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cetzal/authcore/internal/auth"
	"github.com/cetzal/authcore/internal/domain"
	"github.com/cetzal/authcore/internal/repository"
	"github.com/cetzal/authcore/internal/repository/memory"
	apperrors "github.com/cetzal/authcore/pkg/errors"
)

type authFixture struct {
	svc       *AuthService
	users     *mockUserRepository
	blacklist *memory.Blacklist
	events    *recordingEvents
	issuer    *auth.TokenIssuer
}

func newAuthFixture(t *testing.T, rotate bool) *authFixture {
	t.Helper()
	users := new(mockUserRepository)
	bl := memory.NewBlacklist()
	t.Cleanup(func() { _ = bl.Close() })
	events := &recordingEvents{}
	issuer := newTestIssuer()

	svc := NewAuthService(users, bl, issuer, events,
		AuthConfig{RotateRefresh: rotate, StoreTimeout: time.Second}, newTestLogger())
	return &authFixture{svc: svc, users: users, blacklist: bl, events: events, issuer: issuer}
}

func newAuthServiceWith(users repository.UserRepository, bl repository.Blacklist, rotate bool) *AuthService {
	return NewAuthService(users, bl, newTestIssuer(), &recordingEvents{},
		AuthConfig{RotateRefresh: rotate, StoreTimeout: 50 * time.Millisecond}, newTestLogger())
}

func requireAppError(t *testing.T, err error, code string, status int) {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
	assert.Equal(t, status, appErr.Status)
}

func (f *authFixture) login(t *testing.T) *domain.LoginResult {
	t.Helper()
	user := demoUser()
	f.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil).Maybe()
	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Maybe()

	res, err := f.svc.Login(context.Background(), user.Email, "12345")
	require.NoError(t, err)
	return res
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t, true)

	res := f.login(t)

	assert.Equal(t, "Demo User", res.Name)
	assert.NotEmpty(t, res.Pair.AccessToken)
	assert.NotEmpty(t, res.Pair.RefreshToken)
	assert.NotEqual(t, res.Pair.AccessToken, res.Pair.RefreshToken)

	claims, err := f.issuer.Verify(res.Pair.RefreshToken, domain.TokenRefresh)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)

	in, _, _ := f.events.counts()
	assert.Equal(t, 1, in)
}

func TestLogin_UnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t, true)
	user := demoUser()
	f.users.On("GetByEmail", mock.Anything, "ghost@demo.com").
		Return(nil, apperrors.NotFound("user", "ghost@demo.com"))
	f.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	_, errUnknown := f.svc.Login(context.Background(), "ghost@demo.com", "12345")
	_, errWrong := f.svc.Login(context.Background(), user.Email, "wrong")

	var a, b *apperrors.AppError
	require.ErrorAs(t, errUnknown, &a)
	require.ErrorAs(t, errWrong, &b)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Message, b.Message)
	assert.Equal(t, http.StatusUnauthorized, a.Status)
	assert.Equal(t, a.Status, b.Status)

	assert.ErrorIs(t, errUnknown, domain.ErrNotFound)
	assert.ErrorIs(t, errWrong, domain.ErrBadCredentials)
}

func TestLogin_InactiveAccountDisabledRegardlessOfPassword(t *testing.T) {
	f := newAuthFixture(t, true)
	user := demoUser()
	user.IsActive = false
	f.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	for _, pw := range []string{"12345", "wrong"} {
		_, err := f.svc.Login(context.Background(), user.Email, pw)
		requireAppError(t, err, "ACCOUNT_DISABLED", http.StatusForbidden)
		assert.ErrorIs(t, err, domain.ErrAccountDisabled)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	f := newAuthFixture(t, true)

	_, err := f.svc.Login(context.Background(), "", "12345")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestLogin_StoreFailureIsTransient(t *testing.T) {
	users := new(mockUserRepository)
	users.On("GetByEmail", mock.Anything, "demo@demo.com").Return(nil, errors.New("connection refused"))
	svc := newAuthServiceWith(users, new(mockBlacklist), true)

	_, err := svc.Login(context.Background(), "demo@demo.com", "12345")
	requireAppError(t, err, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable)
	assert.ErrorIs(t, err, domain.ErrTransientStore)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestLogin_StoreCallIsBoundedByTimeout(t *testing.T) {
	users := new(mockUserRepository)
	users.On("GetByEmail", mock.Anything, "demo@demo.com").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)
	svc := newAuthServiceWith(users, new(mockBlacklist), true)

	start := time.Now()
	_, err := svc.Login(context.Background(), "demo@demo.com", "12345")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, err, domain.ErrTransientStore)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- Logout ---

func TestLogout_IsIdempotentAndBlocksRefresh(t *testing.T) {
	f := newAuthFixture(t, false)
	res := f.login(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Logout(ctx, domain.TokenClaims{}, res.Pair.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, domain.TokenClaims{}, res.Pair.RefreshToken))

	_, err := f.svc.Refresh(ctx, res.Pair.RefreshToken)
	requireAppError(t, err, "TOKEN_REVOKED", http.StatusUnauthorized)
	assert.ErrorIs(t, err, domain.ErrRevoked)

	_, out, _ := f.events.counts()
	assert.Equal(t, 1, out)
}

func TestLogout_MalformedToken(t *testing.T) {
	f := newAuthFixture(t, true)

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		err := f.svc.Logout(context.Background(), domain.TokenClaims{}, tok)
		requireAppError(t, err, "MALFORMED_TOKEN", http.StatusBadRequest)
		assert.ErrorIs(t, err, domain.ErrMalformedToken)
	}
	assert.Zero(t, f.blacklist.Len())
}

func TestLogout_AccessTokenIsRejectedAsMalformed(t *testing.T) {
	f := newAuthFixture(t, true)
	res := f.login(t)

	err := f.svc.Logout(context.Background(), domain.TokenClaims{}, res.Pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrMalformedToken)
}

func TestLogout_ExpiredRefreshTokenIsNoOp(t *testing.T) {
	user := demoUser()
	past := time.Now().Add(-48 * time.Hour)
	old := newTestIssuer().WithClock(func() time.Time { return past })
	pair, err := old.Issue(user)
	require.NoError(t, err)

	bl := new(mockBlacklist)
	svc := newAuthServiceWith(new(mockUserRepository), bl, true)

	require.NoError(t, svc.Logout(context.Background(), domain.TokenClaims{}, pair.RefreshToken))
	bl.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything)
}

func TestLogout_RevokesCallerAccessToken(t *testing.T) {
	f := newAuthFixture(t, true)
	res := f.login(t)
	ctx := context.Background()

	access, err := f.svc.Authenticate(ctx, res.Pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, access, res.Pair.RefreshToken))

	_, err = f.svc.Authenticate(ctx, res.Pair.AccessToken)
	requireAppError(t, err, "TOKEN_REVOKED", http.StatusUnauthorized)
	assert.Equal(t, 2, f.blacklist.Len())
}

func TestLogout_StoreFailureIsTransient(t *testing.T) {
	user := demoUser()
	pair, err := newTestIssuer().Issue(user)
	require.NoError(t, err)

	bl := new(mockBlacklist)
	bl.On("Revoke", mock.Anything, mock.AnythingOfType("domain.Revocation")).
		Return(false, errors.New("i/o timeout"))
	svc := newAuthServiceWith(new(mockUserRepository), bl, true)

	err = svc.Logout(context.Background(), domain.TokenClaims{}, pair.RefreshToken)
	requireAppError(t, err, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable)
}

func TestLogout_ConcurrentCallsCreateOneRecord(t *testing.T) {
	f := newAuthFixture(t, true)
	res := f.login(t)

	const n = 20
	var (
		wg       sync.WaitGroup
		failures atomic.Int32
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if err := f.svc.Logout(context.Background(), domain.TokenClaims{}, res.Pair.RefreshToken); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 1, f.blacklist.Len())
	_, out, _ := f.events.counts()
	assert.Equal(t, 1, out)
}

// --- Refresh ---

func TestRefresh_WithoutRotationReturnsNewAccessOnly(t *testing.T) {
	f := newAuthFixture(t, false)
	res := f.login(t)

	out, err := f.svc.Refresh(context.Background(), res.Pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, out.AccessToken)
	assert.NotEqual(t, res.Pair.AccessToken, out.AccessToken)
	assert.Empty(t, out.RefreshToken)

	// The refresh token stays usable.
	_, err = f.svc.Refresh(context.Background(), res.Pair.RefreshToken)
	assert.NoError(t, err)
	assert.Zero(t, f.blacklist.Len())
}

func TestRefresh_RotationRevokesPresentedToken(t *testing.T) {
	f := newAuthFixture(t, true)
	res := f.login(t)
	ctx := context.Background()

	out, err := f.svc.Refresh(ctx, res.Pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, out.RefreshToken)
	assert.NotEqual(t, res.Pair.RefreshToken, out.RefreshToken)

	_, err = f.svc.Refresh(ctx, res.Pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRevoked)

	_, err = f.svc.Refresh(ctx, out.RefreshToken)
	assert.NoError(t, err)

	_, _, refreshed := f.events.counts()
	assert.Equal(t, 2, refreshed)
}

func TestRefresh_ConcurrentRotationSucceedsOnce(t *testing.T) {
	f := newAuthFixture(t, true)
	res := f.login(t)

	const n = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		revoked   atomic.Int32
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := f.svc.Refresh(context.Background(), res.Pair.RefreshToken)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrRevoked):
				revoked.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(n-1), revoked.Load())
}

func TestRefresh_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t, true)
	past := time.Now().Add(-48 * time.Hour)
	pair, err := f.issuer.WithClock(func() time.Time { return past }).Issue(demoUser())
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	requireAppError(t, err, "TOKEN_EXPIRED", http.StatusUnauthorized)
	assert.ErrorIs(t, err, domain.ErrExpiredToken)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t, true)
	res := f.login(t)

	_, err := f.svc.Refresh(context.Background(), res.Pair.AccessToken)
	requireAppError(t, err, "MALFORMED_TOKEN", http.StatusBadRequest)
}

func TestRefresh_ForgedSignature(t *testing.T) {
	f := newAuthFixture(t, true)
	other := auth.NewTokenIssuer("another-secret-key-with-32-bytes-or-more", "authcore", time.Minute, time.Hour)
	pair, err := other.Issue(demoUser())
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.ErrorIs(t, err, domain.ErrMalformedToken)
}

func TestRefresh_InactiveUser(t *testing.T) {
	f := newAuthFixture(t, true)
	user := demoUser()
	user.IsActive = false
	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	pair, err := f.issuer.Issue(user)
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	requireAppError(t, err, "TOKEN_REVOKED", http.StatusUnauthorized)
	assert.ErrorIs(t, err, domain.ErrAccountDisabled)
	assert.Zero(t, f.blacklist.Len())
}

func TestRefresh_BlacklistUnavailableFailsClosed(t *testing.T) {
	pair, err := newTestIssuer().Issue(demoUser())
	require.NoError(t, err)

	bl := new(mockBlacklist)
	bl.On("IsRevoked", mock.Anything, mock.AnythingOfType("string")).
		Return(false, errors.New("connection reset"))
	svc := newAuthServiceWith(new(mockUserRepository), bl, false)

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	requireAppError(t, err, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable)
	assert.ErrorIs(t, err, domain.ErrTransientStore)
}

// --- Authenticate ---

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t, true)
	res := f.login(t)

	claims, err := f.svc.Authenticate(context.Background(), res.Pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
	assert.Equal(t, "demo@demo.com", claims.Email)
	assert.Equal(t, "Demo User", claims.Name)

	_, err = f.svc.Authenticate(context.Background(), res.Pair.RefreshToken)
	requireAppError(t, err, "UNAUTHORIZED", http.StatusUnauthorized)

	_, err = f.svc.Authenticate(context.Background(), "garbage")
	requireAppError(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
}
