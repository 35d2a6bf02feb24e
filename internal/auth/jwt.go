package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cetzal/authcore/internal/domain"
)

// Claims is the JWT payload for both token kinds. Email and Name are only
// set on access tokens.
type Claims struct {
	TokenType domain.TokenKind `json:"token_type"`
	Email     string           `json:"email,omitempty"`
	Name      string           `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 token pairs. It holds no mutable
// state and is safe for concurrent use.
type TokenIssuer struct {
	secret        []byte
	issuer        string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

// NewTokenIssuer creates an issuer with the given key and expiry windows.
func NewTokenIssuer(secret, issuer string, accessExpiry, refreshExpiry time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:        []byte(secret),
		issuer:        issuer,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		now:           time.Now,
	}
}

// WithClock returns a copy of the issuer that reads time from now.
func (m *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	c := *m
	c.now = now
	return &c
}

// RefreshExpiry is the lifetime of issued refresh tokens.
func (m *TokenIssuer) RefreshExpiry() time.Duration {
	return m.refreshExpiry
}

// Issue creates a signed access and refresh token for the user. Each token
// gets its own random jti, so two pairs issued in the same second differ.
func (m *TokenIssuer) Issue(user *domain.User) (domain.TokenPair, error) {
	subject := strconv.FormatInt(user.ID, 10)
	now := m.now().UTC().Truncate(time.Second)

	access, accessClaims, err := m.sign(&Claims{
		TokenType:        domain.TokenAccess,
		Email:            user.Email,
		Name:             user.DisplayName(),
		RegisteredClaims: m.registered(subject, now, m.accessExpiry),
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, refreshClaims, err := m.sign(&Claims{
		TokenType:        domain.TokenRefresh,
		RegisteredClaims: m.registered(subject, now, m.refreshExpiry),
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:   access,
		RefreshToken:  refresh,
		AccessClaims:  accessClaims,
		RefreshClaims: refreshClaims,
	}, nil
}

// IssueAccess creates a new access token for the subject of a verified
// refresh token, carrying the user's current profile claims.
func (m *TokenIssuer) IssueAccess(user *domain.User) (string, domain.TokenClaims, error) {
	now := m.now().UTC().Truncate(time.Second)
	token, claims, err := m.sign(&Claims{
		TokenType:        domain.TokenAccess,
		Email:            user.Email,
		Name:             user.DisplayName(),
		RegisteredClaims: m.registered(strconv.FormatInt(user.ID, 10), now, m.accessExpiry),
	})
	if err != nil {
		return "", domain.TokenClaims{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, claims, nil
}

func (m *TokenIssuer) registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *TokenIssuer) sign(c *Claims) (string, domain.TokenClaims, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", domain.TokenClaims{}, err
	}
	return signed, toDomain(c), nil
}

// Verify checks signature, issuer, expiry and kind.
//
// Failures map to domain.ErrExpiredToken for a past exp,
// domain.ErrInvalidSignature for a bad signature and domain.ErrMalformedToken
// for everything else.
func (m *TokenIssuer) Verify(token string, kind domain.TokenKind) (domain.TokenClaims, error) {
	return m.verify(token, kind, false)
}

// VerifyIgnoringExpiry is Verify without the expiry check. Logout uses it
// so an authentic but expired refresh token is accepted as a no-op.
func (m *TokenIssuer) VerifyIgnoringExpiry(token string, kind domain.TokenKind) (domain.TokenClaims, error) {
	return m.verify(token, kind, true)
}

func (m *TokenIssuer) verify(token string, kind domain.TokenKind, skipExpiry bool) (domain.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithIssuedAt(),
	}
	if skipExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	} else {
		opts = append(opts, jwt.WithExpirationRequired())
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.TokenClaims{}, fmt.Errorf("%w: %v", domain.ErrExpiredToken, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return domain.TokenClaims{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
		default:
			return domain.TokenClaims{}, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
		}
	}

	if skipExpiry && (claims.Issuer != m.issuer || claims.ExpiresAt == nil) {
		return domain.TokenClaims{}, fmt.Errorf("%w: missing expiry or wrong issuer", domain.ErrMalformedToken)
	}
	if claims.TokenType != kind {
		return domain.TokenClaims{}, fmt.Errorf("%w: expected %s token, got %q", domain.ErrMalformedToken, kind, claims.TokenType)
	}
	if claims.ID == "" || claims.Subject == "" {
		return domain.TokenClaims{}, fmt.Errorf("%w: missing jti or sub", domain.ErrMalformedToken)
	}
	if _, err := strconv.ParseInt(claims.Subject, 10, 64); err != nil {
		return domain.TokenClaims{}, fmt.Errorf("%w: non-numeric subject", domain.ErrMalformedToken)
	}

	return toDomain(claims), nil
}

func toDomain(c *Claims) domain.TokenClaims {
	out := domain.TokenClaims{
		Subject: c.Subject,
		TokenID: c.ID,
		Kind:    c.TokenType,
		Email:   c.Email,
		Name:    c.Name,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.UTC()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.UTC()
	}
	return out
}

// UserID parses the numeric subject of verified claims.
func UserID(c domain.TokenClaims) int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}
