package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/cetzal/authcore/internal/auth"
	"github.com/cetzal/authcore/internal/domain"
	"github.com/cetzal/authcore/internal/repository"
	apperrors "github.com/cetzal/authcore/pkg/errors"
	"github.com/cetzal/authcore/pkg/tracing"
)

// EventPublisher receives auth domain events. Publishing is best effort.
type EventPublisher interface {
	PublishLoggedIn(ctx context.Context, user *domain.User, pair domain.TokenPair) error
	PublishLoggedOut(ctx context.Context, rev domain.Revocation) error
	PublishTokenRefreshed(ctx context.Context, userID int64, oldTokenID string, rotated bool) error
}

// AuthConfig holds the auth policy knobs.
type AuthConfig struct {
	// RotateRefresh makes Refresh revoke the presented refresh token and
	// return a new pair.
	RotateRefresh bool

	// StoreTimeout bounds every credential store and blacklist call.
	StoreTimeout time.Duration
}

// dummyHash is compared against when the e-mail is unknown so that the
// response time does not depend on whether the account exists.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("authcore-timing-equalizer"), bcryptCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy bcrypt hash: %v", err))
	}
	return h
})

// AuthService implements login, logout and refresh on top of the credential
// store, the token issuer and the blacklist.
type AuthService struct {
	users     repository.UserRepository
	blacklist repository.Blacklist
	tokens    *auth.TokenIssuer
	events    EventPublisher
	cfg       AuthConfig
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	blacklist repository.Blacklist,
	tokens *auth.TokenIssuer,
	events EventPublisher,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 2 * time.Second
	}
	return &AuthService{
		users:     users,
		blacklist: blacklist,
		tokens:    tokens,
		events:    events,
		cfg:       cfg,
		logger:    logger,
		tracer:    tracing.Tracer("github.com/cetzal/authcore/internal/service"),
		now:       time.Now,
	}
}

// Login checks the credentials and issues a token pair.
//
// An unknown e-mail and a wrong password produce the same error. An inactive
// account is reported as disabled before the password is checked.
func (s *AuthService) Login(ctx context.Context, email, password string) (result *domain.LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer func() { s.finish(span, "login", err) }()

	if email == "" || password == "" {
		return nil, apperrors.InvalidInput("email and password are required")
	}

	user, err := s.lookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return nil, apperrors.InvalidCredentials(domain.ErrNotFound)
		}
		return nil, s.unavailable("lookup user", err)
	}

	if !user.IsActive {
		return nil, apperrors.AccountDisabled(domain.ErrAccountDisabled)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, apperrors.InvalidCredentials(domain.ErrBadCredentials)
		}
		return nil, apperrors.Internal(fmt.Errorf("compare password for user %d: %w", user.ID, err))
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("issue tokens: %w", err))
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	if err := s.events.PublishLoggedIn(ctx, user, pair); err != nil {
		s.logger.WarnContext(ctx, "failed to publish logged_in event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("jti", pair.RefreshClaims.TokenID),
	)

	return &domain.LoginResult{Name: user.DisplayName(), User: user, Pair: pair}, nil
}

// Logout revokes the refresh token and, when given, the caller's access
// token. Expired or already revoked refresh tokens succeed without effect;
// only a token that fails structural or signature checks is an error.
func (s *AuthService) Logout(ctx context.Context, access domain.TokenClaims, refreshToken string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer func() { s.finish(span, "logout", err) }()

	claims, err := s.tokens.VerifyIgnoringExpiry(refreshToken, domain.TokenRefresh)
	if err != nil {
		return tokenError(err)
	}

	now := s.now().UTC()
	rev := domain.Revocation{
		TokenID:   claims.TokenID,
		UserID:    auth.UserID(claims),
		ExpiresAt: claims.ExpiresAt,
		RevokedAt: now,
	}

	// An expired refresh token can no longer be used, so there is nothing
	// to record for it.
	created := false
	if claims.ExpiresAt.After(now) {
		created, err = s.revoke(ctx, rev)
		if err != nil {
			return s.unavailable("revoke refresh token", err)
		}
	}

	if access.TokenID != "" && access.ExpiresAt.After(now) {
		if _, err := s.revoke(ctx, domain.Revocation{
			TokenID:   access.TokenID,
			UserID:    auth.UserID(access),
			ExpiresAt: access.ExpiresAt,
			RevokedAt: now,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to revoke access token on logout",
				slog.String("jti", access.TokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	if !created {
		s.logger.DebugContext(ctx, "logout with expired or already revoked refresh token",
			slog.String("jti", rev.TokenID),
		)
		return nil
	}

	if err := s.events.PublishLoggedOut(ctx, rev); err != nil {
		s.logger.WarnContext(ctx, "failed to publish logged_out event",
			slog.String("jti", rev.TokenID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user logged out",
		slog.Int64("user_id", rev.UserID),
		slog.String("jti", rev.TokenID),
	)
	return nil
}

// Refresh exchanges a valid, unrevoked refresh token for a new access token.
// With rotation enabled the presented token is revoked and a new refresh
// token is returned as well; of several concurrent calls with the same token
// only one succeeds.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (result *domain.RefreshResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer func() { s.finish(span, "refresh", err) }()

	claims, err := s.tokens.Verify(refreshToken, domain.TokenRefresh)
	if err != nil {
		return nil, tokenError(err)
	}

	revoked, err := s.isRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, s.unavailable("check revocation", err)
	}
	if revoked {
		return nil, apperrors.TokenRevoked(domain.ErrRevoked)
	}

	userID := auth.UserID(claims)
	user, err := s.lookupByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.TokenRevoked(fmt.Errorf("%w: subject %d no longer exists", domain.ErrRevoked, userID))
		}
		return nil, s.unavailable("lookup user", err)
	}
	// A refresh token of a deactivated account is treated as revoked (401),
	// unlike Login which answers 403.
	if !user.IsActive {
		return nil, apperrors.TokenRevoked(fmt.Errorf("subject %d: %w", userID, domain.ErrAccountDisabled))
	}

	if !s.cfg.RotateRefresh {
		access, _, err := s.tokens.IssueAccess(user)
		if err != nil {
			return nil, apperrors.Internal(fmt.Errorf("issue access token: %w", err))
		}
		s.publishRefreshed(ctx, userID, claims.TokenID, false)
		return &domain.RefreshResult{AccessToken: access}, nil
	}

	created, err := s.revoke(ctx, domain.Revocation{
		TokenID:   claims.TokenID,
		UserID:    userID,
		ExpiresAt: claims.ExpiresAt,
		RevokedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, s.unavailable("rotate refresh token", err)
	}
	if !created {
		return nil, apperrors.TokenRevoked(fmt.Errorf("%w: lost rotation race", domain.ErrRevoked))
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("issue tokens: %w", err))
	}
	s.publishRefreshed(ctx, userID, claims.TokenID, true)

	s.logger.InfoContext(ctx, "refresh token rotated",
		slog.Int64("user_id", userID),
		slog.String("old_jti", claims.TokenID),
		slog.String("new_jti", pair.RefreshClaims.TokenID),
	)

	return &domain.RefreshResult{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Authenticate verifies a bearer access token and rejects it when its id
// has been revoked by a logout.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (domain.TokenClaims, error) {
	claims, err := s.tokens.Verify(accessToken, domain.TokenAccess)
	if err != nil {
		if errors.Is(err, domain.ErrExpiredToken) {
			return domain.TokenClaims{}, apperrors.TokenExpired(err)
		}
		return domain.TokenClaims{}, apperrors.Unauthorized("invalid access token")
	}

	revoked, err := s.isRevoked(ctx, claims.TokenID)
	if err != nil {
		return domain.TokenClaims{}, s.unavailable("check access token revocation", err)
	}
	if revoked {
		return domain.TokenClaims{}, apperrors.TokenRevoked(domain.ErrRevoked)
	}
	return claims, nil
}

func (s *AuthService) publishRefreshed(ctx context.Context, userID int64, oldTokenID string, rotated bool) {
	if err := s.events.PublishTokenRefreshed(ctx, userID, oldTokenID, rotated); err != nil {
		s.logger.WarnContext(ctx, "failed to publish token_refreshed event",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// --- store calls, each bounded by StoreTimeout ---

func (s *AuthService) lookupByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.users.GetByEmail(ctx, email)
}

func (s *AuthService) lookupByID(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) revoke(ctx context.Context, rev domain.Revocation) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.blacklist.Revoke(ctx, rev)
}

func (s *AuthService) isRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.blacklist.IsRevoked(ctx, tokenID)
}

func (s *AuthService) unavailable(op string, err error) *apperrors.AppError {
	return apperrors.Unavailable(fmt.Errorf("%w: %s: %w", domain.ErrTransientStore, op, err))
}

// finish records the outcome of an operation on its span and in metrics.
func (s *AuthService) finish(span trace.Span, op string, err error) {
	outcome := outcomeOf(err)
	authOutcomes.WithLabelValues(op, outcome).Inc()
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if err != nil && apperrors.HTTPStatus(err) >= 500 {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// tokenError maps token verification failures to boundary errors.
func tokenError(err error) *apperrors.AppError {
	if errors.Is(err, domain.ErrExpiredToken) {
		return apperrors.TokenExpired(err)
	}
	return apperrors.MalformedToken(err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, domain.ErrTransientStore):
		return outcomeUnavailable
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrBadCredentials):
		return outcomeInvalid
	case errors.Is(err, domain.ErrAccountDisabled):
		return outcomeDisabled
	case errors.Is(err, domain.ErrExpiredToken):
		return outcomeExpired
	case errors.Is(err, domain.ErrRevoked):
		return outcomeRevoked
	case errors.Is(err, domain.ErrMalformedToken):
		return outcomeMalformed
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrUnauthorized):
		return outcomeBadRequest
	default:
		return outcomeInternal
	}
}
