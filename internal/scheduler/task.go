package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	apexerrors "github.com/apexls/apexls/internal/errors"
	"github.com/apexls/apexls/internal/types"
)

// TaskFunc is the cancellable computation a task runs. The context is
// cancelled on timeout and explicit cancellation; scheduler shutdown waits
// for running tasks without cancelling them. The function must observe it
// at suspension points.
type TaskFunc func(ctx context.Context) error

// Task is one unit of scheduled work.
type Task struct {
	ID          uint64
	RequestType types.RequestKind
	Priority    Priority
	Run         TaskFunc

	// Timeout bounds execution once dispatched. Zero means none.
	Timeout time.Duration

	submittedAt time.Time
	done        chan error
	cancelled   atomic.Bool
	cancel      atomic.Pointer[context.CancelFunc]
}

// NewTask wraps a function for submission.
func NewTask(requestType types.RequestKind, priority Priority, timeout time.Duration, fn TaskFunc) *Task {
	return &Task{
		RequestType: requestType,
		Priority:    priority,
		Timeout:     timeout,
		Run:         fn,
		done:        make(chan error, 1),
	}
}

// Cancel marks the task cancelled. A task still in the queue is skipped by
// the controller on dequeue; a running task has its context cancelled and is
// interrupted at its next suspension point.
func (t *Task) Cancel() {
	t.cancelled.Store(true)
	if cancel := t.cancel.Load(); cancel != nil {
		(*cancel)()
	}
}

// IsCancelled reports whether Cancel was called.
func (t *Task) IsCancelled() bool { return t.cancelled.Load() }

// Await blocks until the task completes or the caller's context expires.
// Cancelled tasks complete with ErrCancelled; timed-out tasks with
// ErrTimeout.
func (t *Task) Await(ctx context.Context) error {
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done exposes the completion channel for select loops.
func (t *Task) Done() <-chan error { return t.done }

// complete delivers the result exactly once.
func (t *Task) complete(err error) {
	select {
	case t.done <- err:
	default:
	}
}

// mapTaskError normalizes context errors into the scheduler's taxonomy.
func mapTaskError(t *Task, err error) error {
	if err == nil {
		return nil
	}
	if t.IsCancelled() {
		return apexerrors.ErrCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apexerrors.ErrTimeout
	}
	return err
}
