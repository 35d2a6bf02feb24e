package domain

import (
	"errors"
	"fmt"
)

// Outcome kinds of the authentication core. Services wrap them in
// *apperrors.AppError for the boundary; errors.Is works through the wrap.
var (
	ErrNotFound        = errors.New("account not found")
	ErrBadCredentials  = errors.New("password mismatch")
	ErrAccountDisabled = errors.New("account disabled")
	ErrMalformedToken  = errors.New("malformed token")
	ErrExpiredToken    = errors.New("token expired")
	ErrRevoked         = errors.New("token revoked")
	ErrTransientStore  = errors.New("store unavailable")

	// ErrInvalidSignature is a MalformedToken: a forged or tampered token is
	// rejected the same way as garbage input.
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrMalformedToken)
)
