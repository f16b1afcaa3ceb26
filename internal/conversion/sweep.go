package conversion

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultSweepInterval = time.Hour
	DefaultMaxAge        = 24 * time.Hour
)

// Sweeper periodically removes stale job directories.
type Sweeper struct {
	Storage  *Storage
	Interval time.Duration
	MaxAge   time.Duration
}

func (s Sweeper) SweepOnce(now time.Time) (int, error) {
	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	n, err := s.Storage.Sweep(maxAge, now)
	if n > 0 || err != nil {
		log.Info().Str("module", "conversion.sweep").Int("removed", n).Err(err).Msg("sweep")
	}
	return n, err
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	_, _ = s.SweepOnce(time.Now())

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			_, _ = s.SweepOnce(now)
		}
	}
}
