package status

import (
	"context"
	"sync/atomic"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// Scheduler drives the engine on a fixed interval. A tick is skipped
// when the previous cycle has not finished, so cycles never overlap.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	running  atomic.Bool
}

// NewScheduler creates a scheduler for the engine.
func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{engine: engine, interval: interval}
}

// Run fires one cycle immediately, then on every tick until the context
// is cancelled. The ticker is always stopped before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.fire(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zlog.Info().Msg("status: scheduler stopped")
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		zlog.Warn().Msg("status: previous cycle still running, skipping tick")
		return
	}
	defer s.running.Store(false)
	s.engine.Cycle(ctx)
}
