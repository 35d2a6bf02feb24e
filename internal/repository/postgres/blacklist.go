package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cetzal/authcore/internal/domain"
	"github.com/cetzal/authcore/pkg/database"
)

// BlacklistRepository implements repository.Blacklist using PostgreSQL.
type BlacklistRepository struct {
	db database.DBTX
}

// NewBlacklistRepository creates a new PostgreSQL-backed blacklist.
func NewBlacklistRepository(db database.DBTX) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// Revoke inserts the token id. The primary key on jti makes concurrent
// revocations of the same token collapse to a single created record.
func (r *BlacklistRepository) Revoke(ctx context.Context, rev domain.Revocation) (created bool, err error) {
	query := `
		INSERT INTO token_blacklist (jti, user_id, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (jti) DO NOTHING`

	ctx, end := database.TraceQuery(ctx, "RevokeToken", query)
	defer func() { end(err) }()

	revokedAt := rev.RevokedAt
	if revokedAt.IsZero() {
		revokedAt = time.Now().UTC()
	}

	ct, err := r.db.Exec(ctx, query, rev.TokenID, rev.UserID, rev.ExpiresAt, revokedAt)
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// IsRevoked reports whether a record exists for the token id.
func (r *BlacklistRepository) IsRevoked(ctx context.Context, tokenID string) (revoked bool, err error) {
	query := `SELECT EXISTS(SELECT 1 FROM token_blacklist WHERE jti = $1)`

	ctx, end := database.TraceQuery(ctx, "IsTokenRevoked", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, tokenID).Scan(&revoked); err != nil {
		return false, fmt.Errorf("check token revoked: %w", err)
	}
	return revoked, nil
}

// PurgeExpired removes records for tokens that expired before the given
// time. Such tokens are rejected on expiry alone, so the record is no longer
// needed.
func (r *BlacklistRepository) PurgeExpired(ctx context.Context, before time.Time) (n int64, err error) {
	query := `DELETE FROM token_blacklist WHERE expires_at < $1`

	ctx, end := database.TraceQuery(ctx, "PurgeExpiredTokens", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("purge blacklist: %w", err)
	}
	return ct.RowsAffected(), nil
}
