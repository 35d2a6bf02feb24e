package repository

import (
	"context"
	"time"

	"github.com/cetzal/authcore/internal/domain"
)

// UserRepository is the credential store.
type UserRepository interface {
	// Create inserts a user and fills in ID and timestamps.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by identifier.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by exact email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns one page of users matching the filter and the total count.
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error)

	// Update writes all mutable fields of an existing user.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user.
	Delete(ctx context.Context, id int64) error

	// ExistsByUsernameOrEmail reports whether either value is taken.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
}

// Blacklist is the persisted set of revoked token identifiers.
type Blacklist interface {
	// Revoke records the token id. It is idempotent: created is true only for
	// the call that inserted the record.
	Revoke(ctx context.Context, rev domain.Revocation) (created bool, err error)

	// IsRevoked reports whether the token id has been revoked.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// PurgeExpired deletes records whose token expired before the given time.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// ProductRepository persists inventory items.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id int64) error
}
