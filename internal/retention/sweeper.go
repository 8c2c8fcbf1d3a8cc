package retention

import (
	"log/slog"
	"time"

	"alertcore/internal/clock"
	"alertcore/internal/metrics"
	"alertcore/internal/store"
)

// DefaultWindow is the purge age threshold used when none is supplied.
const DefaultWindow = 30 * 24 * time.Hour

// Sweeper purges resolved alerts older than a retention window.
// Params: alert store, clock, and logger.
// Returns: on-demand sweep operation; scheduling belongs to the caller.
type Sweeper struct {
	store  *store.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewSweeper creates a retention sweeper.
// Params: alert store, clock, and logger.
// Returns: initialized sweeper.
func NewSweeper(alertStore *store.Store, clk clock.Clock, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: alertStore, clock: clk, logger: logger}
}

// Sweep removes resolved alerts created before now minus the window.
// Params: retention window; non-positive values fall back to DefaultWindow.
// Returns: number of alerts purged from the live collection; history is untouched.
func (s *Sweeper) Sweep(window time.Duration) int {
	if window <= 0 {
		window = DefaultWindow
	}
	cutoff := s.clock.Now().Add(-window)
	removed := s.store.PurgeResolvedBefore(cutoff)
	if removed > 0 {
		metrics.SweepPurgedTotal.Add(float64(removed))
		if s.logger != nil {
			s.logger.Info("retention sweep purged alerts", "removed", removed, "cutoff", cutoff)
		}
	}
	return removed
}
