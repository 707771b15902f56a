// Package scheduler runs the marketplace's periodic jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultSettleSchedule = "0 * * * * *"

type Scheduler struct {
	cron    *cron.Cron
	settler *Settler
	logger  *slog.Logger
	timeout time.Duration
}

// New registers the settlement job on schedule, a six field cron expression
// with seconds, evaluated in UTC. Runs that are still busy when the next one
// is due are skipped.
func New(settler *Settler, schedule string, logger *slog.Logger) (*Scheduler, error) {
	cronLogger := cronLogAdapter{logger: logger}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		settler: settler,
		logger:  logger,
		timeout: 50 * time.Second,
	}

	if _, err := s.cron.AddFunc(schedule, s.settleAuctions); err != nil {
		return nil, fmt.Errorf("register settlement job %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop prevents new runs and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) settleAuctions() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.settler.SettleEnded(ctx)
	if err != nil {
		s.logger.Error("auction settlement failed", "error", err, "settled", n)
		return
	}
	if n > 0 {
		s.logger.Info("auction settlement finished", "settled", n)
	}
}

// cronLogAdapter routes cron's own logging to slog.
type cronLogAdapter struct {
	logger *slog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...any) {
	a.logger.Debug("cron: "+msg, keysAndValues...)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...any) {
	a.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
