// Package scheduler serializes request handling, symbol processing, and
// background maintenance over a six-level priority queue. One controller
// goroutine drives dispatch; task functions run in bounded worker goroutines
// whose lifecycle the controller's counters track.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apexls/apexls/internal/debug"
	apexerrors "github.com/apexls/apexls/internal/errors"
	"github.com/apexls/apexls/internal/metrics"
	"github.com/apexls/apexls/internal/types"
)

// backPressureStats accumulates bounded-buffer contention per priority.
type backPressureStats struct {
	events  int64
	retries int64
	waitNs  int64
}

// Scheduler is the priority task scheduler.
type Scheduler struct {
	cfg Config

	queues [NumPriorities]chan *Task

	// Concurrency limits are atomics so settings changes can adjust them
	// while the controller runs.
	maxConcurrency [NumPriorities]atomic.Int64
	maxTotal       atomic.Int64

	activeCount [NumPriorities]atomic.Int64
	totalActive atomic.Int64

	tasksStarted   atomic.Int64
	tasksCompleted atomic.Int64
	tasksDropped   atomic.Int64

	// statsMu guards the per-kind breakdowns and back-pressure accumulators.
	statsMu      sync.Mutex
	kindCounts   [NumPriorities]map[types.RequestKind]*metrics.RequestTypeBreakdown
	backPressure [NumPriorities]backPressureStats

	// thresholdState tracks the last logged queue warning level per priority
	// (0 none, 1 warning, 2 critical) so transitions log once.
	thresholdState [NumPriorities]int

	cbMu     sync.Mutex
	callback func(metrics.Snapshot)
	prevSnap metrics.Snapshot

	nextTaskID     atomic.Uint64
	running        atomic.Bool
	shutdown       chan struct{}
	controllerDone chan struct{}
	inflight       sync.WaitGroup
}

// New creates a scheduler with the given configuration. Call Start before
// offering tasks.
func New(cfg Config) *Scheduler {
	s := &Scheduler{cfg: cfg.withDefaults()}
	s.initState()
	return s
}

func (s *Scheduler) initState() {
	for p := 0; p < NumPriorities; p++ {
		s.queues[p] = make(chan *Task, s.cfg.QueueCapacity[p])
		s.kindCounts[p] = make(map[types.RequestKind]*metrics.RequestTypeBreakdown)
		s.backPressure[p] = backPressureStats{}
		s.activeCount[p].Store(0)
		s.maxConcurrency[p].Store(int64(s.cfg.MaxConcurrency[p]))
		s.thresholdState[p] = 0
	}
	s.maxTotal.Store(int64(s.cfg.MaxTotalConcurrency))
	s.totalActive.Store(0)
	s.tasksStarted.Store(0)
	s.tasksCompleted.Store(0)
	s.tasksDropped.Store(0)
	s.shutdown = make(chan struct{})
	s.controllerDone = make(chan struct{})
	s.prevSnap = metrics.Snapshot{}
}

// Start launches the controller loop. Starting a running scheduler is an
// input error.
func (s *Scheduler) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return apexerrors.ErrAlreadyInitialised
	}
	go s.run()
	debug.LogScheduler("controller started")
	return nil
}

// Offer enqueues a task at its priority. A full bounded buffer is retried
// with a short sleep; the first failure records a back-pressure event, and
// wait time plus retry count accumulate per priority. The caller's context
// bounds the wait: when it expires the offer fails with BufferFullError.
func (s *Scheduler) Offer(ctx context.Context, task *Task) error {
	if !s.running.Load() {
		return apexerrors.ErrSchedulerNotInitialised
	}
	p := task.Priority
	if int(p) >= NumPriorities {
		return fmt.Errorf("invalid priority %d", p)
	}

	task.ID = s.nextTaskID.Add(1)
	task.submittedAt = time.Now()

	start := time.Now()
	retries := 0
	for {
		select {
		case s.queues[p] <- task:
			s.statsMu.Lock()
			s.breakdownLocked(p, task.RequestType).Queued++
			if retries > 0 {
				s.backPressure[p].waitNs += time.Since(start).Nanoseconds()
			}
			s.statsMu.Unlock()
			debug.LogScheduler("enqueued task %d kind=%s priority=%s retries=%d",
				task.ID, task.RequestType, p, retries)
			s.notifyIfChanged()
			return nil
		default:
		}

		if retries == 0 {
			s.statsMu.Lock()
			s.backPressure[p].events++
			s.statsMu.Unlock()
		}
		retries++
		s.statsMu.Lock()
		s.backPressure[p].retries++
		s.statsMu.Unlock()

		select {
		case <-s.shutdown:
			return apexerrors.ErrShuttingDown
		case <-ctx.Done():
			return &apexerrors.BufferFullError{
				Priority: p.String(),
				Capacity: s.cfg.QueueCapacity[p],
				Retries:  retries,
			}
		case <-time.After(offerRetrySleep):
		}
	}
}

// Submit wraps a function in a task and offers it.
func (s *Scheduler) Submit(ctx context.Context, kind types.RequestKind, priority Priority, timeout time.Duration, fn TaskFunc) (*Task, error) {
	task := NewTask(kind, priority, timeout, fn)
	if err := s.Offer(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// run is the controller loop. It is infallible: any error inside one scan is
// caught, logged, and the loop continues.
func (s *Scheduler) run() {
	defer close(s.controllerDone)

	lastSummary := time.Now()
	streak := 0

	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		if time.Since(lastSummary) >= s.cfg.SummaryInterval {
			s.logSummary()
			lastSummary = time.Now()
		}

		executed, budgetHit := s.scan(&streak)
		if budgetHit {
			runtime.Gosched()
			continue
		}

		if !executed {
			streak = 0
			runtime.Gosched()
			time.Sleep(s.cfg.IdleSleep)
		}

		if streak > s.cfg.MaxHighPriorityStreak {
			s.starvationRelief()
			streak = 0
		}
	}
}

// scan walks priorities from Critical to Background, dispatching at most one
// task. budgetHit reports the scan exceeded its yield budget and the loop
// should restart from the top.
func (s *Scheduler) scan(streak *int) (executed, budgetHit bool) {
	defer func() {
		if r := recover(); r != nil {
			debug.Errorf("SCHED", "scan panic recovered: %v", r)
		}
	}()

	scanStart := time.Now()
	for p := Priority(0); p < NumPriorities; p++ {
		if time.Since(scanStart) >= yieldBudget {
			return executed, true
		}

		s.checkThresholds(p)

		if s.activeCount[p].Load() >= s.maxConcurrency[p].Load() {
			continue
		}
		if s.totalActive.Load() >= s.maxTotal.Load() && !p.exemptFromGlobalCap() {
			// Block lower priorities at the global cap; Critical, Immediate
			// and High proceed to prevent priority inversion.
			continue
		}

		task := s.tryTake(p)
		if task == nil {
			continue
		}

		(*streak)++
		s.dispatch(task)
		runtime.Gosched()
		return true, false
	}
	return executed, false
}

// tryTake pops one runnable task from a priority queue, skipping and
// accounting for tasks cancelled while queued.
func (s *Scheduler) tryTake(p Priority) *Task {
	for {
		select {
		case task := <-s.queues[p]:
			if task.IsCancelled() {
				s.statsMu.Lock()
				b := s.breakdownLocked(p, task.RequestType)
				if b.Queued > 0 {
					b.Queued--
				}
				s.statsMu.Unlock()
				s.tasksDropped.Add(1)
				task.complete(apexerrors.ErrCancelled)
				s.notifyIfChanged()
				continue
			}
			return task
		default:
			return nil
		}
	}
}

// checkThresholds emits queue-occupancy warnings on upward transitions:
// >=90% of capacity is critical, >=75% a warning.
func (s *Scheduler) checkThresholds(p Priority) {
	capacity := s.cfg.QueueCapacity[p]
	size := len(s.queues[p])

	state := 0
	switch {
	case float64(size) >= queueCriticalPct*float64(capacity):
		state = 2
	case float64(size) >= queueWarningPct*float64(capacity):
		state = 1
	}

	if state > s.thresholdState[p] {
		if state == 2 {
			debug.Errorf("SCHED", "queue %s critically full: %d/%d", p, size, capacity)
		} else {
			debug.Warnf("SCHED", "queue %s filling: %d/%d", p, size, capacity)
		}
	}
	s.thresholdState[p] = state
}

// starvationRelief drains a bounded batch of lower-priority work after a long
// streak of high-priority dispatches. Reverse order: Background first, so the
// most-starved work runs soonest.
func (s *Scheduler) starvationRelief() {
	lowerTotal := len(s.queues[PriorityNormal]) + len(s.queues[PriorityLow]) + len(s.queues[PriorityBackground])
	if lowerTotal == 0 {
		return
	}

	tenth := (lowerTotal + 9) / 10
	batch := minInt(tenth, 10)
	if alt := minInt(5, lowerTotal); alt > batch {
		batch = alt
	}

	debug.LogScheduler("starvation relief: draining up to %d of %d lower-priority tasks", batch, lowerTotal)

	drained := 0
	for _, p := range []Priority{PriorityBackground, PriorityLow, PriorityNormal} {
		for drained < batch {
			task := s.tryTake(p)
			if task == nil {
				break
			}
			s.dispatch(task)
			drained++
		}
	}
}

// dispatch moves a task from queued to active and starts its worker
// goroutine. The completion hook runs on every exit path - success, error,
// timeout, cancellation, panic - so counters always balance.
func (s *Scheduler) dispatch(task *Task) {
	p := task.Priority

	s.statsMu.Lock()
	b := s.breakdownLocked(p, task.RequestType)
	if b.Queued > 0 {
		b.Queued--
	}
	b.Active++
	s.statsMu.Unlock()

	s.activeCount[p].Add(1)
	s.totalActive.Add(1)
	s.tasksStarted.Add(1)

	base := context.Background()
	var ctx context.Context
	var cancel context.CancelFunc
	if task.Timeout > 0 {
		ctx, cancel = context.WithTimeout(base, task.Timeout)
	} else {
		ctx, cancel = context.WithCancel(base)
	}
	task.cancel.Store(&cancel)

	s.inflight.Add(1)
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task %d panic: %v", task.ID, r)
			}
			cancel()

			s.activeCount[p].Add(-1)
			s.totalActive.Add(-1)
			s.tasksCompleted.Add(1)

			s.statsMu.Lock()
			bd := s.breakdownLocked(p, task.RequestType)
			if bd.Active > 0 {
				bd.Active--
			}
			bd.Completed++
			s.statsMu.Unlock()

			err = mapTaskError(task, err)
			if err != nil && !errors.Is(err, apexerrors.ErrCancelled) {
				debug.Errorf("SCHED", "task %d kind=%s priority=%s failed: %v",
					task.ID, task.RequestType, p, err)
			}
			task.complete(err)
			s.inflight.Done()
			s.notifyIfChanged()
		}()
		err = task.Run(ctx)
	}()
}

// Shutdown signals the controller to exit, waits for it, lets in-flight
// tasks complete (bounded by the caller's context), and resets state so the
// scheduler may be started again.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	close(s.shutdown)

	select {
	case <-s.controllerDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	waitDone := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Fail queued-but-never-started tasks before the reset.
	for p := 0; p < NumPriorities; p++ {
	drain:
		for {
			select {
			case task := <-s.queues[p]:
				s.tasksDropped.Add(1)
				task.complete(apexerrors.ErrShuttingDown)
			default:
				break drain
			}
		}
	}

	s.initState()
	debug.LogScheduler("controller stopped")
	return nil
}

// IsRunning reports whether the controller is live.
func (s *Scheduler) IsRunning() bool { return s.running.Load() }

// QueueSize returns the current depth of one priority's buffer.
func (s *Scheduler) QueueSize(p Priority) int { return len(s.queues[p]) }

// ActiveCount returns the number of running tasks at one priority.
func (s *Scheduler) ActiveCount(p Priority) int64 { return s.activeCount[p].Load() }

// TotalActive returns the number of running tasks across priorities.
func (s *Scheduler) TotalActive() int64 { return s.totalActive.Load() }

// UpdateMaxConcurrency applies a live per-priority concurrency change. A
// reduction below the current active count is reported as an error for the
// caller to log; the new limit still takes effect at the next spawn.
func (s *Scheduler) UpdateMaxConcurrency(p Priority, limit int) error {
	if limit <= 0 {
		limit = Unlimited
	}
	active := s.activeCount[p].Load()
	s.maxConcurrency[p].Store(int64(limit))
	if active > int64(limit) {
		return fmt.Errorf("max concurrency for %s reduced to %d below %d active tasks", p, limit, active)
	}
	return nil
}

// UpdateMaxTotalConcurrency applies a live global cap change with the same
// reject-but-apply semantics as UpdateMaxConcurrency.
func (s *Scheduler) UpdateMaxTotalConcurrency(limit int) error {
	if limit <= 0 {
		limit = Unlimited
	}
	active := s.totalActive.Load()
	s.maxTotal.Store(int64(limit))
	if active > int64(limit) {
		return fmt.Errorf("total concurrency reduced to %d below %d active tasks", limit, active)
	}
	return nil
}

func (s *Scheduler) breakdownLocked(p Priority, kind types.RequestKind) *metrics.RequestTypeBreakdown {
	b, ok := s.kindCounts[p][kind]
	if !ok {
		b = &metrics.RequestTypeBreakdown{}
		s.kindCounts[p][kind] = b
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
