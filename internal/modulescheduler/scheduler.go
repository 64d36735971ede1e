// Package modulescheduler implements the scan-worker module scheduler
// from spec.md §4.7: dependency-respecting parallel execution of one
// request's module DAG, three-way failure classification, cascade
// propagation, and handoff to the retry queue or the coordinator's
// notification endpoint.
package modulescheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/akowasch/domainsearch/internal/domain"
	"github.com/akowasch/domainsearch/internal/metrics"
	"github.com/akowasch/domainsearch/internal/module"
	"github.com/akowasch/domainsearch/internal/repository"
)

// Notifier hands a finished scan task to whatever tells the
// coordinator about it (the scanner's notification client).
type Notifier interface {
	ScanFinished(ctx context.Context, requestID int64, domainName string) error
}

// Retryer accepts a RetryTask produced by a run with transient
// failures (the scanner's RetryQueue).
type Retryer interface {
	Submit(task domain.RetryTask)
}

// Scheduler runs one request's module DAG at a time. Per spec.md §5,
// runs across different requests never interleave: runMu is held for
// the full duration of a Run call, while modules within that run
// execute concurrently under their own mutex/condition-variable pair.
type Scheduler struct {
	registry        *module.Registry
	store           repository.Persistence
	notifier        Notifier
	retryer         Retryer
	rerunCounterMax int
	logger          *slog.Logger

	runMu sync.Mutex
}

func New(registry *module.Registry, store repository.Persistence, notifier Notifier, retryer Retryer, rerunCounterMax int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		registry:        registry,
		store:           store,
		notifier:        notifier,
		retryer:         retryer,
		rerunCounterMax: rerunCounterMax,
		logger:          logger.With("component", "modulescheduler"),
	}
}

// run is the mutable state of one in-progress run, guarded by mu and
// coordinated by cond — the "one mutex and a condition variable" of
// spec.md §4.7.
type run struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending         map[string]struct{}
	done            map[string]struct{}
	failedTransient map[string]struct{}
	failedPermanent map[string]struct{}
	failedCascade   map[string]struct{}

	// permanentErrs holds the error text each failedPermanent module
	// reported, so Run can emit its own ErrorRecord distinct from the
	// cascade records its dependents get.
	permanentErrs map[string]string

	// satisfied holds modules that are not part of this run's target
	// set but count as already-done dependencies: a rerun only ever
	// targets the previously-transient subset, and per spec.md §9 open
	// question 1, modules that succeeded in the original attempt are
	// treated as satisfied.
	satisfied map[string]struct{}

	inFlight int
}

// Run executes the module DAG for (requestID, domainName) at the
// given attempt. rerunModules, when non-nil, restricts execution to
// that subset (a retry); nil means "run every registered module" (a
// first attempt).
func (s *Scheduler) Run(ctx context.Context, requestID int64, domainName string, attempt int, rerunModules map[string]struct{}) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	defer func() { metrics.SchedulerRunDuration.Observe(time.Since(start).Seconds()) }()

	if attempt > s.rerunCounterMax {
		s.reportExpired(ctx, requestID, rerunModules)
		return nil
	}

	target := rerunModules
	if target == nil {
		names := s.registry.Names()
		target = make(map[string]struct{}, len(names))
		for _, n := range names {
			target[n] = struct{}{}
		}
	}

	satisfied := make(map[string]struct{})
	for _, n := range s.registry.Names() {
		if _, inTarget := target[n]; !inTarget {
			satisfied[n] = struct{}{}
		}
	}

	r := &run{
		pending:         cloneSet(target),
		done:            make(map[string]struct{}),
		failedTransient: make(map[string]struct{}),
		failedPermanent: make(map[string]struct{}),
		failedCascade:   make(map[string]struct{}),
		permanentErrs:   make(map[string]string),
		satisfied:       satisfied,
	}
	r.cond = sync.NewCond(&r.mu)

	s.drive(ctx, requestID, domainName, attempt, r)

	s.cascadeFixpoint(r)

	for name := range r.failedPermanent {
		comment := r.permanentErrs[name]
		if err := s.store.InsertError(ctx, requestID, name, comment); err != nil {
			s.logger.ErrorContext(ctx, "insert error record failed", "module", name, "error", err)
		}
	}

	for name := range r.failedCascade {
		if err := s.store.InsertError(ctx, requestID, name, "Module depends on finally failed module"); err != nil {
			s.logger.ErrorContext(ctx, "insert error record failed", "module", name, "error", err)
		}
	}

	if len(r.failedTransient) > 0 {
		metrics.RetryAttempt.Observe(float64(attempt + 1))
		s.retryer.Submit(domain.RetryTask{
			RequestID:    requestID,
			Domain:       domainName,
			Attempt:      attempt + 1,
			RerunModules: cloneSet(r.failedTransient),
			EnqueuedAt:   time.Now(),
		})
		return nil
	}

	return s.notifier.ScanFinished(ctx, requestID, domainName)
}

// drive is the per-run scheduling loop: §4.7 steps 1-4.
func (s *Scheduler) drive(ctx context.Context, requestID int64, domainName string, attempt int, r *run) {
	r.mu.Lock()
	for len(r.pending) > 0 {
		launched := false
		for name := range r.pending {
			m, _ := s.registry.Get(name)
			deps := m.Dependencies()

			switch {
			case depsSatisfied(deps, r.done, r.satisfied):
				delete(r.pending, name)
				r.inFlight++
				launched = true
				go s.runModule(ctx, requestID, domainName, attempt, r, m)
			case depsIntersect(deps, r.failedPermanent) || depsIntersect(deps, r.failedCascade):
				delete(r.pending, name)
				r.failedCascade[name] = struct{}{}
				launched = true
			case depsIntersect(deps, r.failedTransient):
				delete(r.pending, name)
				r.failedTransient[name] = struct{}{}
				launched = true
			}
		}
		if len(r.pending) > 0 {
			if !launched {
				r.cond.Wait()
			}
		}
	}
	for r.inFlight > 0 {
		r.cond.Wait()
	}
	r.mu.Unlock()
}

// runModule executes one module outside the run lock and reports its
// outcome back under the lock, per §4.7's "worker task on finish
// acquires the mutex, updates the appropriate set, notifies, and
// exits."
func (s *Scheduler) runModule(ctx context.Context, requestID int64, domainName string, attempt int, r *run, m module.Module) {
	start := time.Now()
	err := m.Run(ctx, requestID, domainName, attempt)
	outcome := "done"

	r.mu.Lock()
	switch {
	case err == nil:
		r.done[m.Name()] = struct{}{}
	default:
		var merr *module.Error
		if asModuleError(err, &merr) && merr.Rerun {
			outcome = "failed_transient"
			r.failedTransient[m.Name()] = struct{}{}
		} else {
			outcome = "failed_permanent"
			r.failedPermanent[m.Name()] = struct{}{}
			r.permanentErrs[m.Name()] = err.Error()
		}
	}
	r.inFlight--
	r.cond.Broadcast()
	r.mu.Unlock()

	metrics.ModuleRunDuration.WithLabelValues(m.Name(), outcome).Observe(time.Since(start).Seconds())
}

// reportExpired is the §4.8 termination bound: attempt exceeding
// rerun_counter_max ends the task with an ErrorRecord per module and
// no further requeue.
func (s *Scheduler) reportExpired(ctx context.Context, requestID int64, rerunModules map[string]struct{}) {
	for name := range rerunModules {
		metrics.ModuleExpiredTotal.WithLabelValues(name).Inc()
		if err := s.store.InsertError(ctx, requestID, name, "Module expired"); err != nil {
			s.logger.ErrorContext(ctx, "insert expired error record failed", "module", name, "error", err)
		}
	}
}

// cascadeFixpoint is §4.7 step 5: repeatedly promote failed_transient
// members whose dependencies landed in failed_permanent/failed_cascade
// until no more moves occur.
func (s *Scheduler) cascadeFixpoint(r *run) {
	for {
		moved := false
		for name := range r.failedTransient {
			m, ok := s.registry.Get(name)
			if !ok {
				continue
			}
			deps := m.Dependencies()
			if depsIntersect(deps, r.failedPermanent) || depsIntersect(deps, r.failedCascade) {
				delete(r.failedTransient, name)
				r.failedCascade[name] = struct{}{}
				moved = true
			}
		}
		if !moved {
			break
		}
	}
}

func depsSatisfied(deps []string, done, satisfied map[string]struct{}) bool {
	for _, d := range deps {
		_, isDone := done[d]
		_, isSatisfied := satisfied[d]
		if !isDone && !isSatisfied {
			return false
		}
	}
	return true
}

func depsIntersect(deps []string, set map[string]struct{}) bool {
	for _, d := range deps {
		if _, ok := set[d]; ok {
			return true
		}
	}
	return false
}

func cloneSet(src map[string]struct{}) map[string]struct{} {
	dst := make(map[string]struct{}, len(src))
	for k := range src {
		dst[k] = struct{}{}
	}
	return dst
}

func asModuleError(err error, target **module.Error) bool {
	me, ok := err.(*module.Error)
	if !ok {
		return false
	}
	*target = me
	return true
}
