package scheduler

import (
	"context"
	"time"

	"nurture_backend/internal/nurture/executor"
	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"
)

// Sweeper periodically runs the nurture executor over all due leads.
type Sweeper struct {
	exec     *executor.Executor
	interval time.Duration
	log      *logger.Logger
}

func NewSweeper(exec *executor.Executor, cfg config.SweepConfig, log *logger.Logger) *Sweeper {
	interval := cfg.GetSweepInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{exec: exec, interval: interval, log: log}
}

// Run blocks until the context is cancelled. One sweep runs immediately
// so a restart does not wait a full interval for overdue leads.
func (s *Sweeper) Run(ctx context.Context) {
	if s == nil || s.exec == nil {
		return
	}

	s.log.Info("nurture sweeper started", "interval", s.interval.String())

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("nurture sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.exec.Tick(ctx); err != nil {
		s.log.Error("nurture sweep failed", "error", err)
	}
}
