// Package scheduler optionally triggers the pipeline cycles in-process
// on cron schedules, for deployments without an external scheduler.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cycleTimeout bounds one triggered cycle. It must comfortably exceed
// the slowest expected scan so the lease, not the trigger, is the
// mutual-exclusion mechanism.
const cycleTimeout = 4 * time.Minute

// Scheduler runs registered cycle jobs on independent cron schedules.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// New creates a stopped Scheduler.
func New(log *slog.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log}
}

// Add registers a cycle under the given cron spec. Standard five-field
// specs and @every descriptors are accepted.
func (s *Scheduler) Add(spec, name string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
		defer cancel()

		s.log.Debug("cycle start", "cycle", name)
		if err := job(ctx); err != nil {
			s.log.Error("cycle failed", "cycle", name, "error", err)
			return
		}
		s.log.Debug("cycle done", "cycle", name)
	})
	if err != nil {
		return fmt.Errorf("add %s schedule %q: %w", name, spec, err)
	}
	return nil
}

// Start begins firing schedules in their own goroutines.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
