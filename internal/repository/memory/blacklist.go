// Package memory holds process-local store implementations for development
// and tests. Contents are lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/cetzal/authcore/internal/domain"
)

// minTTL keeps records for already-expired tokens around long enough for the
// created/duplicate decision to be observed by concurrent callers.
const minTTL = time.Second

// Blacklist implements repository.Blacklist on a ttlcache. Entries expire
// together with the token they describe.
type Blacklist struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, domain.Revocation]
	now   func() time.Time
}

// NewBlacklist creates an in-memory blacklist and starts its expiry loop.
// Call Close to stop it.
func NewBlacklist() *Blacklist {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, domain.Revocation](),
	)
	go cache.Start()

	return &Blacklist{cache: cache, now: time.Now}
}

// Revoke stores the revocation unless the token id is already present.
func (b *Blacklist) Revoke(_ context.Context, rev domain.Revocation) (bool, error) {
	if rev.RevokedAt.IsZero() {
		rev.RevokedAt = b.now().UTC()
	}
	ttl := rev.ExpiresAt.Sub(b.now())
	if ttl < minTTL {
		ttl = minTTL
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cache.Get(rev.TokenID) != nil {
		return false, nil
	}
	b.cache.Set(rev.TokenID, rev, ttl)
	return true, nil
}

// IsRevoked reports whether the token id is present and not yet expired.
func (b *Blacklist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	return b.cache.Get(tokenID) != nil, nil
}

// PurgeExpired drops records whose token expired before the given time.
func (b *Blacklist) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int64
	for id, item := range b.cache.Items() {
		if item.Value().ExpiresAt.Before(before) {
			b.cache.Delete(id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of live records.
func (b *Blacklist) Len() int {
	return b.cache.Len()
}

// Close stops the expiry loop.
func (b *Blacklist) Close() error {
	b.cache.Stop()
	return nil
}
