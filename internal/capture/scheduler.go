package capture

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"marketing-dashboard/backend/internal/platform/apperr"
)

// DefaultSchedule captures every six hours, on the hour.
const DefaultSchedule = "0 */6 * * *"

// Runner runs one capture cycle over every tenant.
type Runner interface {
	CaptureAll(ctx context.Context) (int, error)
}

// Scheduler triggers CaptureAll on a standard 5-field cron schedule evaluated in UTC.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler validates schedule and registers runner. timeout bounds one cycle; zero means none.
func NewScheduler(schedule string, runner Runner, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, apperr.E(apperr.Configuration, "capture.NewScheduler", "invalid capture schedule", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		runner:  runner,
		timeout: timeout,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, apperr.E(apperr.Configuration, "capture.NewScheduler", "invalid capture schedule", err)
	}
	return s, nil
}

// RunOnce runs a single capture cycle.
func (s *Scheduler) RunOnce() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	n, err := s.runner.CaptureAll(ctx)
	if err != nil {
		s.logger.Error("capture: cycle failed", zap.Int("captured", n), zap.Error(err))
		return
	}
	s.logger.Info("capture: cycle complete", zap.Int("captured", n), zap.Duration("took", time.Since(start)))
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for a running cycle until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("capture: stop timed out with a cycle in flight")
	}
}
