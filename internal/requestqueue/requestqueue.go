// Package requestqueue binds protocol request kinds to handlers and submits
// their work to the scheduler, adding per-handler timeouts and retry with
// exponential backoff on transient failures.
package requestqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apexls/apexls/internal/debug"
	apexerrors "github.com/apexls/apexls/internal/errors"
	"github.com/apexls/apexls/internal/graph"
	"github.com/apexls/apexls/internal/scheduler"
	"github.com/apexls/apexls/internal/types"
)

// Retry backoff constants: 100ms, 200ms, 400ms, ... capped at 2s.
const (
	retryBaseDelay = 100 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

// ProcessFunc is a registered request handler. It reads and writes the graph
// through the provided handle and must observe ctx at suspension points.
type ProcessFunc func(ctx context.Context, params any, g *graph.SymbolGraph) (any, error)

// Handler binds one request kind to its processing function and policy.
type Handler struct {
	RequestType types.RequestKind
	Priority    scheduler.Priority
	Timeout     time.Duration
	MaxRetries  int
	Process     ProcessFunc
}

// SubmitOptions overrides per-request policy.
type SubmitOptions struct {
	// Priority overrides the handler's registered priority.
	Priority *scheduler.Priority
	// Timeout overrides the handler's registered timeout.
	Timeout *time.Duration
}

// Stats is the queue's aggregate view.
type Stats struct {
	TotalProcessed          int64          `json:"total_processed"`
	TotalFailed             int64          `json:"total_failed"`
	AverageProcessingTimeMs float64        `json:"average_processing_time_ms"`
	ActiveWorkers           int64          `json:"active_workers"`
	QueueSizes              map[string]int `json:"queue_sizes"`
}

// Queue is the adapter between protocol handlers and the scheduler.
type Queue struct {
	sched *scheduler.Scheduler
	graph *graph.SymbolGraph

	mu       sync.RWMutex
	handlers map[types.RequestKind]Handler

	statsMu        sync.Mutex
	totalProcessed int64
	totalFailed    int64
	avgProcessing  time.Duration
}

// New creates a request queue over a scheduler and graph.
func New(s *scheduler.Scheduler, g *graph.SymbolGraph) *Queue {
	return &Queue{
		sched:    s,
		graph:    g,
		handlers: make(map[types.RequestKind]Handler),
	}
}

// Register installs a handler for a request kind. Re-registering replaces the
// previous handler.
func (q *Queue) Register(h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[h.RequestType] = h
}

// Registered reports whether a handler exists for a kind.
func (q *Queue) Registered(kind types.RequestKind) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.handlers[kind]
	return ok
}

// SubmitRequest schedules one request and waits for its result. Timeouts and
// recoverable failures retry up to the handler's MaxRetries with exponential
// backoff.
func (q *Queue) SubmitRequest(ctx context.Context, kind types.RequestKind, params any, opts *SubmitOptions) (any, error) {
	q.mu.RLock()
	handler, ok := q.handlers[kind]
	q.mu.RUnlock()
	if !ok {
		return nil, apexerrors.ErrHandlerNotRegistered
	}

	priority := handler.Priority
	timeout := handler.Timeout
	if opts != nil {
		if opts.Priority != nil {
			priority = *opts.Priority
		}
		if opts.Timeout != nil {
			timeout = *opts.Timeout
		}
	}

	var lastErr error
	for attempt := 0; attempt <= handler.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			if delay > retryMaxDelay {
				delay = retryMaxDelay
			}
			debug.Log("REQQ", "retrying %s (attempt %d/%d) after %v: %v",
				kind, attempt, handler.MaxRetries, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := q.runOnce(ctx, handler, kind, priority, timeout, params)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !apexerrors.IsRecoverable(err) {
			break
		}
	}

	q.recordFailure()
	return nil, lastErr
}

func (q *Queue) runOnce(ctx context.Context, handler Handler, kind types.RequestKind, priority scheduler.Priority, timeout time.Duration, params any) (any, error) {
	var (
		result any
		start  time.Time
	)

	task := scheduler.NewTask(kind, priority, timeout, func(taskCtx context.Context) error {
		start = time.Now()
		r, err := handler.Process(taskCtx, params, q.graph)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	if err := q.sched.Offer(ctx, task); err != nil {
		return nil, err
	}

	if err := task.Await(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			task.Cancel()
			return nil, apexerrors.ErrCancelled
		}
		return nil, err
	}

	q.recordSuccess(time.Since(start))
	return result, nil
}

func (q *Queue) recordSuccess(elapsed time.Duration) {
	q.statsMu.Lock()
	defer q.statsMu.Unlock()
	q.totalProcessed++
	if q.avgProcessing == 0 {
		q.avgProcessing = elapsed
	} else {
		// Simple moving average
		q.avgProcessing = (q.avgProcessing*9 + elapsed) / 10
	}
}

func (q *Queue) recordFailure() {
	q.statsMu.Lock()
	defer q.statsMu.Unlock()
	q.totalFailed++
}

// Statistics returns the queue's aggregate view, including the scheduler's
// per-priority queue depths.
func (q *Queue) Statistics() Stats {
	q.statsMu.Lock()
	stats := Stats{
		TotalProcessed:          q.totalProcessed,
		TotalFailed:             q.totalFailed,
		AverageProcessingTimeMs: float64(q.avgProcessing) / float64(time.Millisecond),
	}
	q.statsMu.Unlock()

	stats.ActiveWorkers = q.sched.TotalActive()
	stats.QueueSizes = make(map[string]int, scheduler.NumPriorities-1)
	for p := scheduler.PriorityImmediate; p < scheduler.NumPriorities; p++ {
		stats.QueueSizes[p.String()] = q.sched.QueueSize(p)
	}
	return stats
}
