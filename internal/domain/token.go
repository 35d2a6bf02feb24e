package domain

import "time"

// TokenKind distinguishes access from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// TokenPair is the result of a successful login or a rotating refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string

	AccessClaims  TokenClaims
	RefreshClaims TokenClaims
}

// TokenClaims is what a verified token asserts.
type TokenClaims struct {
	Subject   string
	TokenID   string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Set on access tokens only.
	Email string
	Name  string
}

// Revocation records that a token id may no longer be used.
type Revocation struct {
	TokenID   string
	UserID    int64
	ExpiresAt time.Time
	RevokedAt time.Time
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Name string
	User *User
	Pair TokenPair
}

// RefreshResult is returned by a successful refresh. RefreshToken is empty
// unless rotation is enabled.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}
