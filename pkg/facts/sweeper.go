package facts

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes expired facts on a fixed interval, independently of lookups.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper returns a Sweeper for store. A non-positive interval yields a
// Sweeper whose Run returns immediately.
func NewSweeper(store *Store, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run sweeps every interval until ctx is cancelled. Sweep failures are logged
// and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return nil
	}

	s.logger.Info("starting fact sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("fact sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.store.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("fact sweep failed", zap.Error(err))
			}
		}
	}
}
