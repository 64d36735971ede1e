// Package retryqueue implements the scanner-owned RetryQueue and
// Watchdog from spec.md §4.8: a FIFO of RetryTasks, polled at
// rerun_queue_check_delay intervals, that re-submits a task to the
// ModuleScheduler once its per-attempt threshold has elapsed.
package retryqueue

import (
	"context"
	"log/slog"
	"time"

	"github.com/akowasch/domainsearch/internal/domain"
	"github.com/akowasch/domainsearch/internal/module"
	"github.com/akowasch/domainsearch/internal/queue"
	"github.com/akowasch/domainsearch/internal/repository"
)

// Scheduler is the subset of modulescheduler.Scheduler the Watchdog
// calls back into.
type Scheduler interface {
	Run(ctx context.Context, requestID int64, domainName string, attempt int, rerunModules map[string]struct{}) error
}

// Queue is the retry FIFO plus its Watchdog loop.
type Queue struct {
	q          *queue.Queue[domain.RetryTask]
	thresholds []time.Duration
	checkDelay time.Duration
	scheduler  Scheduler
	logger     *slog.Logger
}

// New builds a Queue. thresholdsMin is the ordered list of per-attempt
// thresholds in minutes from config (rerun_thresholds); the last value
// is reused for any attempt beyond the list's length. The scheduler it
// calls back into is supplied later via SetScheduler, breaking the
// construction cycle between Scheduler and Retryer.
func New(thresholdsMin []int, checkDelay time.Duration, logger *slog.Logger) *Queue {
	thresholds := make([]time.Duration, len(thresholdsMin))
	for i, m := range thresholdsMin {
		thresholds[i] = time.Duration(m) * time.Minute
	}
	return &Queue{
		q:          queue.New(queue.RetryTaskCodec),
		thresholds: thresholds,
		checkDelay: checkDelay,
		logger:     logger.With("component", "retryqueue"),
	}
}

// SetScheduler wires the Watchdog's callback target. Must be called
// before Run.
func (q *Queue) SetScheduler(scheduler Scheduler) {
	q.scheduler = scheduler
}

// Submit implements modulescheduler.Retryer: push a freshly classified
// retry task to the tail.
func (q *Queue) Submit(task domain.RetryTask) {
	q.q.Push(task)
}

// Threshold returns the per-attempt wait for attempt, per spec.md
// §4.8's "rerun_thresholds[min(attempt-1, |thresholds|-1)]".
func (q *Queue) Threshold(attempt int) time.Duration {
	if len(q.thresholds) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(q.thresholds) {
		idx = len(q.thresholds) - 1
	}
	return q.thresholds[idx]
}

// Run drives the Watchdog until ctx is canceled: at each checkDelay
// tick, inspect the head entry and either re-append it (threshold not
// elapsed) or hand it to the scheduler.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.checkDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.tick(ctx)
		}
	}
}

func (q *Queue) tick(ctx context.Context) {
	task, ok := q.q.Pull(ctx, 0)
	if !ok {
		return
	}

	if time.Since(task.EnqueuedAt) < q.Threshold(task.Attempt) {
		q.q.Push(task)
		return
	}

	if err := q.scheduler.Run(ctx, task.RequestID, task.Domain, task.Attempt, task.RerunModules); err != nil {
		q.logger.ErrorContext(ctx, "retry run failed", "request_id", task.RequestID, "domain", task.Domain, "error", err)
	}
}

// Snapshot persists every buffered entry to path on shutdown.
func (q *Queue) Snapshot(path string) error {
	return q.q.Snapshot(path)
}

// Restore reloads path on startup, validating each entry with the
// retry-specific validator from spec.md §4.2: shape (handled by the
// codec), every listed module present in registry, is_request_valid,
// and not yet expired relative to requestExpiration.
func (q *Queue) Restore(ctx context.Context, path string, registry *module.Registry, store repository.Persistence, requestExpiration time.Duration) (restored, dropped int, err error) {
	validate := func(ctx context.Context, task domain.RetryTask) bool {
		for name := range task.RerunModules {
			if !registry.Contains(name) {
				return false
			}
		}
		valid, err := store.IsRequestValid(ctx, task.RequestID, task.Domain)
		if err != nil || !valid {
			return false
		}
		return time.Since(task.EnqueuedAt) < requestExpiration
	}
	return q.q.Restore(ctx, path, validate)
}

// Size reports the current buffer length, for diagnostics.
func (q *Queue) Size() int { return q.q.Size() }
