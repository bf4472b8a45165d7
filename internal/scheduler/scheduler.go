// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "icalfilter/internal/log"
)

// Pruner removes cache entries older than maxAge.
type Pruner interface {
	Prune(maxAge time.Duration) (int, error)
}

// Scheduler wraps a cron runner.
type Scheduler struct {
	cron *cron.Cron
}

// New returns a scheduler using the standard 5-field cron syntax, with
// descriptors like "@hourly" accepted.
func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// AddCachePrune registers a job that prunes p on the given schedule.
func (s *Scheduler) AddCachePrune(spec string, p Pruner, maxAge time.Duration) error {
	if _, err := s.cron.AddFunc(spec, func() { runPrune(p, maxAge) }); err != nil {
		return fmt.Errorf("invalid cache prune schedule %q: %w", spec, err)
	}
	appLog.Info("cache prune scheduled", "schedule", spec, "max_age", maxAge)
	return nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

func runPrune(p Pruner, maxAge time.Duration) {
	n, err := p.Prune(maxAge)
	if err != nil {
		appLog.Error("cache prune failed", err, "removed", n)
		return
	}
	appLog.Info("cache pruned", "removed", n)
}
