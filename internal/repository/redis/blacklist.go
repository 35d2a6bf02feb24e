// Package redis fronts the durable blacklist with a Redis read cache so the
// per-request revocation check rarely reaches PostgreSQL.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cetzal/authcore/internal/domain"
	"github.com/cetzal/authcore/internal/repository"
	"github.com/cetzal/authcore/pkg/database"
)

const keyPrefix = "authcore:blacklist:"

// CachedBlacklist implements repository.Blacklist. Writes go to the backing
// store first and then to Redis. A Redis failure never changes an answer: it
// only costs a round trip to the backing store.
type CachedBlacklist struct {
	client  *redis.Client
	backing repository.Blacklist
	logger  *slog.Logger
}

// NewCachedBlacklist wraps backing with a Redis cache.
func NewCachedBlacklist(client *redis.Client, backing repository.Blacklist, logger *slog.Logger) *CachedBlacklist {
	return &CachedBlacklist{client: client, backing: backing, logger: logger}
}

// Revoke records the revocation in the backing store and caches it.
func (b *CachedBlacklist) Revoke(ctx context.Context, rev domain.Revocation) (bool, error) {
	created, err := b.backing.Revoke(ctx, rev)
	if err != nil {
		return false, err
	}
	b.remember(ctx, rev.TokenID, rev.UserID, rev.ExpiresAt)
	return created, nil
}

// IsRevoked answers from Redis when the key is present and falls back to the
// backing store otherwise.
func (b *CachedBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	hit, err := b.lookup(ctx, tokenID)
	switch {
	case err == nil && hit:
		return true, nil
	case err != nil:
		b.logger.WarnContext(ctx, "blacklist cache lookup failed",
			slog.String("jti", tokenID),
			slog.String("error", err.Error()),
		)
	}

	revoked, err := b.backing.IsRevoked(ctx, tokenID)
	if err != nil {
		return false, err
	}
	return revoked, nil
}

// PurgeExpired delegates to the backing store. Cached keys carry their own TTL.
func (b *CachedBlacklist) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return b.backing.PurgeExpired(ctx, before)
}

func (b *CachedBlacklist) lookup(ctx context.Context, tokenID string) (hit bool, err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemRedis, "GetRevokedToken", "")
	defer func() { end(err) }()

	err = b.client.Get(ctx, keyPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *CachedBlacklist) remember(ctx context.Context, tokenID string, userID int64, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}

	var err error
	ctx, end := database.TraceOperation(ctx, database.SystemRedis, "SetRevokedToken", "")
	defer func() { end(err) }()

	err = b.client.Set(ctx, keyPrefix+tokenID, strconv.FormatInt(userID, 10), ttl).Err()
	if err != nil {
		b.logger.WarnContext(ctx, "blacklist cache write failed",
			slog.String("jti", tokenID),
			slog.String("error", err.Error()),
		)
	}
}
