package storecache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Purger drops cached data.
type Purger interface {
	Purge() int
}

// Refresher purges a cache on a fixed interval so regenerated dataset files
// are picked up without a restart.
type Refresher struct {
	scheduler *gocron.Scheduler
	cache     Purger
	interval  time.Duration
	logger    *slog.Logger
}

// NewRefresher creates a refresher for cache. It does nothing until Start.
func NewRefresher(cache Purger, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		scheduler: gocron.NewScheduler(time.UTC),
		cache:     cache,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the purge job. A non-positive interval disables it.
func (r *Refresher) Start() error {
	if r.interval <= 0 {
		r.logger.Info("dataset cache refresh disabled")
		return nil
	}
	_, err := r.scheduler.Every(r.interval).WaitForSchedule().Do(func() {
		n := r.cache.Purge()
		r.logger.Info("dataset cache purged", "entries", n)
	})
	if err != nil {
		return fmt.Errorf("schedule cache refresh: %w", err)
	}
	r.scheduler.StartAsync()
	r.logger.Info("dataset cache refresh scheduled", "interval", r.interval)
	return nil
}

// Stop cancels future purges.
func (r *Refresher) Stop() {
	r.scheduler.Stop()
}
