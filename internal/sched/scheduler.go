package sched

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"
)

// Scheduler fires the incremental cycle whenever the cron expression is due.
// A tick is skipped while the previous run is still active: the warehouse
// loader assumes one run at a time, and the scheduler is where that is
// enforced.
type Scheduler struct {
	Expr   string
	Run    func(ctx context.Context) error
	Logger zerolog.Logger

	running atomic.Bool
}

// Start blocks until ctx is done, checking the expression once a minute.
// An empty or invalid expression disables scheduling.
func (s *Scheduler) Start(ctx context.Context) {
	if s.Expr == "" {
		s.Logger.Info().Msg("no sync schedule configured")
		return
	}
	g := gronx.New()
	if !g.IsValid(s.Expr) {
		s.Logger.Error().Str("expr", s.Expr).Msg("invalid sync schedule, scheduler disabled")
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.Logger.Info().Str("expr", s.Expr).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := g.IsDue(s.Expr, now)
			if err != nil || !due {
				continue
			}
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.Logger.Warn().Msg("previous run still active, skipping tick")
		return
	}
	go func() {
		defer s.running.Store(false)
		if err := s.Run(ctx); err != nil {
			s.Logger.Error().Err(err).Msg("scheduled run failed")
		}
	}()
}
