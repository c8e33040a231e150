// Package scheduler drives the trading loop's cadences. Each Runner
// owns one cadence; per-symbol mutual exclusion lives in KeyedLock so
// overlapping cycles for the same symbol are skipped, never queued.
package scheduler

import (
	"context"
	"time"

	"helmsman/internal/logger"
)

// Runner fires a task on a fixed interval, aligned to wall-clock
// boundaries of that interval plus an offset. Alignment keeps candle
// fetches just after bar close instead of drifting with process start.
type Runner struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewRunner(name string, interval, offset time.Duration) *Runner {
	return &Runner{Name: name, Interval: interval, Offset: offset, nowFn: time.Now}
}

// Start blocks until ctx is done. Callers run it in its own goroutine.
func (r *Runner) Start(ctx context.Context, task func()) {
	if task == nil || r.Interval <= 0 {
		logger.Warnf("scheduler %s: missing task or invalid interval=%s, exit", r.Name, r.Interval)
		return
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	if r.nowFn == nil {
		r.nowFn = time.Now
	}

	logger.Infof("scheduler %s: started interval=%s offset=%s", r.Name, r.Interval, r.Offset)

	if r.RunImmediately {
		task()
	}

	for {
		now := r.nowFn().UTC()
		wakeAt := now.Truncate(r.Interval).Add(r.Interval).Add(r.Offset)
		wait := wakeAt.Sub(now)
		if wait <= 0 {
			task()
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("scheduler %s: ctx done, exit", r.Name)
			return
		case <-timer.C:
		}
		task()
	}
}
