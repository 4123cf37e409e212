package bot

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// RunFunc performs one polling run.
type RunFunc func(ctx context.Context) (types.RunSummary, error)

// Scheduler repeats runs with a fixed gap between the end of one run and
// the start of the next.
type Scheduler struct {
	run        RunFunc
	interval   atomic.Int64
	runOnStart bool
	logger     *slog.Logger
	after      func(time.Duration) <-chan time.Time
	runs       atomic.Int64
}

// NewScheduler creates a scheduler. A non-positive interval falls back to
// two hours.
func NewScheduler(run RunFunc, interval time.Duration, runOnStart bool, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = utils.NewComponentLogger("scheduler")
	}
	s := &Scheduler{run: run, runOnStart: runOnStart, logger: logger, after: time.After}
	s.SetInterval(interval)
	return s
}

// SetInterval changes the gap used after the current run.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		d = 2 * time.Hour
	}
	s.interval.Store(int64(d))
}

// Interval returns the current gap between runs.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// Runs returns how many runs have completed.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// Run blocks until ctx is done. Run errors are logged and do not stop the
// loop.
func (s *Scheduler) Run(ctx context.Context) error {
	wait := time.Duration(0)
	if !s.runOnStart {
		wait = s.Interval()
	}
	for ctx.Err() == nil {
		if wait > 0 {
			s.logger.Info("next run scheduled", "in", wait, "at", time.Now().Add(wait).Format("15:04:05"))
			select {
			case <-ctx.Done():
				return nil
			case <-s.after(wait):
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		summary, err := s.run(ctx)
		s.runs.Add(1)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("run interrupted", "run_id", summary.RunID)
				return nil
			}
			s.logger.Error("run failed", "run_id", summary.RunID, "error", err)
		}
		wait = s.Interval()
	}
	return nil
}
