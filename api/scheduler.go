/*
scheduler.go - Automated monthly snapshot scheduler

PURPOSE:
  Records the portfolio totals once a month so the dashboard can chart
  debt and net position over time.

DESIGN:
  - robfig/cron drives the schedule (default "0 0 1 * *": midnight on the 1st)
  - Each run snapshots the first of the current month, so a missed run can
    be caught up by RunNow any time during the month
  - A month that already has a snapshot is skipped, not an error
  - Runs once on Start, so a server that was down on the 1st catches up

USAGE:
  scheduler, err := NewSnapshotScheduler(svc, "0 0 1 * *", log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - portfolio/service.go: TakeMonthlySnapshot
  - handlers.go: CreateSnapshot endpoint (manual snapshots)
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSnapshotSpec runs at midnight on the first of every month.
const DefaultSnapshotSpec = "0 0 1 * *"

// MonthlySnapshotter is the service call the scheduler drives.
type MonthlySnapshotter interface {
	TakeMonthlySnapshot(ctx context.Context) (bool, error)
}

// SnapshotScheduler takes monthly snapshots on a cron schedule.
type SnapshotScheduler struct {
	svc     MonthlySnapshotter
	spec    string
	log     *logrus.Logger
	timeout time.Duration

	cron    *cron.Cron
	mu      sync.Mutex
	started bool
}

// NewSnapshotScheduler validates spec and builds a stopped scheduler.
func NewSnapshotScheduler(svc MonthlySnapshotter, spec string, log *logrus.Logger) (*SnapshotScheduler, error) {
	if spec == "" {
		spec = DefaultSnapshotSpec
	}
	if log == nil {
		log = logrus.New()
	}

	s := &SnapshotScheduler{
		svc:     svc,
		spec:    spec,
		log:     log,
		timeout: time.Minute,
		cron:    cron.New(cron.WithLogger(cron.PrintfLogger(log))),
	}
	if _, err := s.cron.AddFunc(spec, s.RunNow); err != nil {
		return nil, fmt.Errorf("invalid snapshot schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins the scheduler and runs one catch-up snapshot.
func (s *SnapshotScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	go s.RunNow()
	s.cron.Start()
	s.log.WithField("spec", s.spec).Info("snapshot scheduler started")
}

// Stop stops the scheduler and waits for a running snapshot to finish.
func (s *SnapshotScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.log.Info("snapshot scheduler stopped")
}

// RunNow takes this month's snapshot if it is missing.
func (s *SnapshotScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	wrote, err := s.svc.TakeMonthlySnapshot(ctx)
	if err != nil {
		s.log.WithError(err).Error("monthly snapshot failed")
		return
	}
	if wrote {
		s.log.Info("monthly snapshot recorded")
	} else {
		s.log.Debug("monthly snapshot already present")
	}
}

// NextRun returns when the next scheduled snapshot will occur.
func (s *SnapshotScheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now())
}
