// Package metrics defines the scheduler's observable state snapshots and the
// change predicate that drives client-facing notifications.
package metrics

import (
	"time"

	"github.com/apexls/apexls/internal/types"
)

// RequestTypeBreakdown counts tasks of one request kind at one priority.
type RequestTypeBreakdown struct {
	Queued    int64 `json:"queued"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
}

// BackPressure aggregates bounded-buffer contention for one priority.
type BackPressure struct {
	Events    int64   `json:"events"`
	Retries   int64   `json:"retries"`
	AvgWaitMs float64 `json:"avg_wait_ms"`
}

// PrioritySnapshot is the observable state of one priority level.
type PrioritySnapshot struct {
	Priority       string                                     `json:"priority"`
	QueueSize      int                                        `json:"queue_size"`
	Capacity       int                                        `json:"capacity"`
	UtilizationPct float64                                    `json:"utilization_pct"`
	ActiveCount    int64                                      `json:"active_count"`
	RequestTypes   map[types.RequestKind]RequestTypeBreakdown `json:"request_types,omitempty"`
	BackPressure   BackPressure                               `json:"back_pressure"`
}

// Snapshot is one observation of the scheduler.
type Snapshot struct {
	Priorities     []PrioritySnapshot `json:"priorities"`
	TasksStarted   int64              `json:"tasks_started"`
	TasksCompleted int64              `json:"tasks_completed"`
	TasksDropped   int64              `json:"tasks_dropped"`
	Timestamp      time.Time          `json:"timestamp"`
}

// Changed reports whether two snapshots differ materially: any task count,
// any queue size, or any active count.
func Changed(prev, curr Snapshot) bool {
	if prev.TasksStarted != curr.TasksStarted ||
		prev.TasksCompleted != curr.TasksCompleted ||
		prev.TasksDropped != curr.TasksDropped {
		return true
	}
	if len(prev.Priorities) != len(curr.Priorities) {
		return true
	}
	for i := range curr.Priorities {
		if prev.Priorities[i].QueueSize != curr.Priorities[i].QueueSize {
			return true
		}
		if prev.Priorities[i].ActiveCount != curr.Priorities[i].ActiveCount {
			return true
		}
	}
	return false
}
