package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cetzal/authcore/internal/repository"
)

// Janitor periodically purges revocation records whose token has expired.
type Janitor struct {
	blacklist repository.Blacklist
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// DefaultPurgeInterval is used when NewJanitor gets a non-positive interval.
const DefaultPurgeInterval = time.Hour

// NewJanitor creates a janitor. timeout bounds each purge.
func NewJanitor(blacklist repository.Blacklist, interval, timeout time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		logger.Warn("non-positive blacklist purge interval, using default",
			slog.Duration("interval", interval),
			slog.Duration("default", DefaultPurgeInterval),
		)
		interval = DefaultPurgeInterval
	}
	return &Janitor{
		blacklist: blacklist,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Run purges once immediately and then on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		j.PurgeOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PurgeOnce runs a single purge and returns the number of removed records.
// Errors are logged, not returned; the next tick retries.
func (j *Janitor) PurgeOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	n, err := j.blacklist.PurgeExpired(ctx, j.now().UTC())
	if err != nil {
		j.logger.WarnContext(ctx, "blacklist purge failed", slog.String("error", err.Error()))
		return 0
	}
	blacklistPurged.Add(float64(n))
	if n > 0 {
		j.logger.InfoContext(ctx, "purged expired revocations", slog.Int64("count", n))
	}
	return n
}
