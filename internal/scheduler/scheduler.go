// Package scheduler runs periodic maintenance jobs, currently journal retention.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Pruner deletes journal entries older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Config holds the scheduler configuration.
type Config struct {
	Pruner    Pruner
	Retention time.Duration
	Interval  time.Duration
	Logger    *slog.Logger
	// Now is optional and defaults to time.Now.
	Now func() time.Time
}

// Scheduler runs journal retention on a fixed interval using gocron.
type Scheduler struct {
	cron   gocron.Scheduler
	cfg    Config
	logger *slog.Logger
}

// New creates a new Scheduler. The retention job is registered but does not
// run until Start is called.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Pruner == nil {
		return nil, fmt.Errorf("scheduler: pruner is required")
	}
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("scheduler: retention must be positive, got %s", cfg.Retention)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}

	s := &Scheduler{cron: cron, cfg: cfg, logger: cfg.Logger}

	if _, err := cron.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(func() { _, _ = s.PruneNow(context.Background()) }),
		gocron.WithName("journal-retention"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, fmt.Errorf("scheduling journal retention: %w", err)
	}
	return s, nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("journal retention scheduled",
		"retention", s.cfg.Retention.String(), "interval", s.cfg.Interval.String())
}

// Stop shuts down the gocron scheduler.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}

// PruneNow removes entries older than the retention window immediately.
func (s *Scheduler) PruneNow(ctx context.Context) (int64, error) {
	cutoff := s.cfg.Now().Add(-s.cfg.Retention)
	n, err := s.cfg.Pruner.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("journal retention failed", "cutoff", cutoff, "error", err)
		return 0, err
	}
	if n > 0 {
		s.logger.Info("journal pruned", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}
