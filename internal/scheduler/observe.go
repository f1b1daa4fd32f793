package scheduler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/apexls/apexls/internal/debug"
	"github.com/apexls/apexls/internal/metrics"
	"github.com/apexls/apexls/internal/types"
)

// Metrics returns an observation of the scheduler. The Critical level is
// internal and excluded.
func (s *Scheduler) Metrics() metrics.Snapshot {
	return s.snapshot(false)
}

func (s *Scheduler) snapshot(includeCritical bool) metrics.Snapshot {
	snap := metrics.Snapshot{
		TasksStarted:   s.tasksStarted.Load(),
		TasksCompleted: s.tasksCompleted.Load(),
		TasksDropped:   s.tasksDropped.Load(),
		Timestamp:      time.Now(),
	}

	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	start := PriorityImmediate
	if includeCritical {
		start = PriorityCritical
	}
	for p := start; p < NumPriorities; p++ {
		capacity := s.cfg.QueueCapacity[p]
		size := len(s.queues[p])

		ps := metrics.PrioritySnapshot{
			Priority:    p.String(),
			QueueSize:   size,
			Capacity:    capacity,
			ActiveCount: s.activeCount[p].Load(),
		}
		if capacity > 0 {
			ps.UtilizationPct = float64(size) / float64(capacity) * 100
		}

		if len(s.kindCounts[p]) > 0 {
			ps.RequestTypes = make(map[types.RequestKind]metrics.RequestTypeBreakdown, len(s.kindCounts[p]))
			for kind, b := range s.kindCounts[p] {
				ps.RequestTypes[kind] = *b
			}
		}

		bp := s.backPressure[p]
		ps.BackPressure = metrics.BackPressure{
			Events:  bp.events,
			Retries: bp.retries,
		}
		if bp.events > 0 {
			ps.BackPressure.AvgWaitMs = float64(bp.waitNs) / float64(bp.events) / 1e6
		}

		snap.Priorities = append(snap.Priorities, ps)
	}
	return snap
}

// SetStateChangeCallback installs the client-facing notification hook,
// invoked whenever metrics change materially.
func (s *Scheduler) SetStateChangeCallback(cb func(metrics.Snapshot)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.callback = cb
}

// notifyIfChanged compares the current snapshot to the last delivered one and
// invokes the callback when the difference is material.
func (s *Scheduler) notifyIfChanged() {
	s.cbMu.Lock()
	cb := s.callback
	if cb == nil {
		s.cbMu.Unlock()
		return
	}
	curr := s.snapshot(false)
	if !metrics.Changed(s.prevSnap, curr) {
		s.cbMu.Unlock()
		return
	}
	s.prevSnap = curr
	s.cbMu.Unlock()

	cb(curr)
}

// logSummary emits the periodic structured state line: queue sizes, active
// counts, and the request-type breakdown.
func (s *Scheduler) logSummary() {
	snap := s.snapshot(true)

	var b strings.Builder
	for i, ps := range snap.Priorities {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(ps.Priority)
		b.WriteString("=")
		writeInt(&b, ps.QueueSize)
		b.WriteString("/")
		writeInt(&b, int(ps.ActiveCount))
	}

	var kinds strings.Builder
	for _, ps := range snap.Priorities {
		for kind, counts := range ps.RequestTypes {
			if counts.Queued == 0 && counts.Active == 0 {
				continue
			}
			if kinds.Len() > 0 {
				kinds.WriteString(" ")
			}
			kinds.WriteString(string(kind))
			kinds.WriteString(":")
			writeInt(&kinds, int(counts.Queued))
			kinds.WriteString("q/")
			writeInt(&kinds, int(counts.Active))
			kinds.WriteString("a")
		}
	}

	debug.Infof("SCHED", "state queued/active [%s] kinds [%s] started=%d completed=%d dropped=%d",
		b.String(), kinds.String(), snap.TasksStarted, snap.TasksCompleted, snap.TasksDropped)
}

func writeInt(b *strings.Builder, v int) {
	b.WriteString(strconv.Itoa(v))
}

// StartMetricsNotifier launches the optional periodic notifier: a Background
// task samples metrics every interval and pushes the change-driven callback.
// The returned stop function halts the ticker; scheduler shutdown halts it
// too.
func (s *Scheduler) StartMetricsNotifier(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	shutdownAtStart := s.shutdown

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-shutdownAtStart:
				return
			case <-ticker.C:
				task := NewTask(types.RequestMetricsSample, PriorityBackground, 0, func(ctx context.Context) error {
					s.notifyIfChanged()
					return nil
				})
				offerCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				if err := s.Offer(offerCtx, task); err != nil {
					debug.LogScheduler("metrics notifier offer skipped: %v", err)
				}
				cancel()
			}
		}
	}()

	var once bool
	return func() {
		if !once {
			once = true
			close(done)
		}
	}
}
