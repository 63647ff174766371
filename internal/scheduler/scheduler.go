// Package scheduler drives the loyalty stamp sweep on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is the unit of scheduled work. Stamper satisfies it.
type Job interface {
	Run(ctx context.Context) (int, error)
}

// Scheduler runs a job on a ticker until its context is cancelled.
type Scheduler struct {
	job        Job
	interval   time.Duration
	runAtStart bool
}

// New creates a Scheduler.
func New(job Job, interval time.Duration, runAtStart bool) *Scheduler {
	return &Scheduler{job: job, interval: interval, runAtStart: runAtStart}
}

// Start launches the loop in a goroutine and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	if s.runAtStart {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()
	granted, err := s.job.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled sweep failed")
		return
	}
	log.Info().
		Int("granted", granted).
		Dur("took", time.Since(start)).
		Msg("scheduled sweep finished")
}
