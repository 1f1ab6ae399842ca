package snapshots

import (
	"context"
	"fmt"
	"time"

	cron "github.com/robfig/cron/v3"
)

// exportTimeout bounds a single scheduled export.
const exportTimeout = time.Minute

// Scheduler runs Exporter.Export on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	exporter *Exporter
	keep     int
}

// NewScheduler parses spec (standard five-field cron or a descriptor such as
// "@hourly") and registers the export job. keep > 0 prunes older snapshots
// after each successful run.
func NewScheduler(exporter *Exporter, spec string, keep int) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(), exporter: exporter, keep: keep}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("snapshot schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()
	if _, err := s.exporter.Export(ctx); err != nil {
		return
	}
	if s.keep > 0 {
		if n, err := s.exporter.Prune(ctx, s.keep); err != nil {
			s.exporter.logger.Warn("snapshot prune failed", "error", err)
		} else if n > 0 {
			s.exporter.logger.Debug("snapshots pruned", "removed", n)
		}
	}
}

// Start begins firing the schedule in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running export, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
