package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ebarangay/registry-system/internal/core/ports"
)

const defaultInterval = time.Hour

// Sweeper periodically asks the notification service to drop stale persisted
// read/cleared state. The service itself gates the expensive scan to once a
// day; the sweeper only has to poke it often enough.
type Sweeper struct {
	notifications ports.NotificationService
	interval      time.Duration
	log           zerolog.Logger
}

// NewSweeper creates a Sweeper. If interval <= 0, defaultInterval is used.
func NewSweeper(notifications ports.NotificationService, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Sweeper{notifications: notifications, interval: interval, log: log}
}

// Start launches the sweep loop. It runs once immediately, then on every
// tick, and stops when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("notification sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if err := s.notifications.CleanupStale(ctx); err != nil {
		s.log.Error().Err(err).Msg("notification state sweep failed")
	}
}
