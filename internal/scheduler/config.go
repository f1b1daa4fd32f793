package scheduler

import (
	"math"
	"time"
)

// Scheduler configuration constants.
const (
	// DefaultQueueCapacity is the per-priority bounded buffer size.
	DefaultQueueCapacity = 200

	// DefaultMaxHighPriorityStreak is the streak threshold triggering
	// starvation relief.
	DefaultMaxHighPriorityStreak = 50

	// DefaultIdleSleep is how long the controller sleeps when no work is
	// dispatchable.
	DefaultIdleSleep = 1 * time.Millisecond

	// yieldBudget bounds one scan pass before the controller yields.
	yieldBudget = 5 * time.Millisecond

	// DefaultSummaryInterval spaces the structured state summary lines.
	DefaultSummaryInterval = 30 * time.Second

	// Unlimited marks a concurrency limit as uncapped.
	Unlimited = math.MaxInt32

	// Queue threshold warnings
	queueWarningPct  = 0.75
	queueCriticalPct = 0.90

	// offerRetrySleep spaces bounded-buffer retries.
	offerRetrySleep = 1 * time.Millisecond
)

// Config configures a Scheduler. Zero values take documented defaults.
type Config struct {
	// QueueCapacity is the per-priority bounded buffer size (default 200).
	QueueCapacity [NumPriorities]int

	// MaxConcurrency is the per-priority maximum active tasks
	// (default Unlimited).
	MaxConcurrency [NumPriorities]int

	// MaxTotalConcurrency caps active tasks across all priorities. The
	// default is ceil(sum(MaxConcurrency)*1.2), or Unlimited when any
	// per-priority limit is uncapped.
	MaxTotalConcurrency int

	// MaxHighPriorityStreak is the consecutive-dispatch count above which
	// starvation relief drains lower-priority work (default 50).
	MaxHighPriorityStreak int

	// IdleSleep is the controller's sleep when no work was dispatchable
	// (default 1ms).
	IdleSleep time.Duration

	// SummaryInterval spaces the periodic state summary (default 30s).
	SummaryInterval time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	var cfg Config
	for p := 0; p < NumPriorities; p++ {
		cfg.QueueCapacity[p] = DefaultQueueCapacity
		cfg.MaxConcurrency[p] = Unlimited
	}
	cfg.MaxTotalConcurrency = Unlimited
	cfg.MaxHighPriorityStreak = DefaultMaxHighPriorityStreak
	cfg.IdleSleep = DefaultIdleSleep
	cfg.SummaryInterval = DefaultSummaryInterval
	return cfg
}

// withDefaults fills zero fields with defaults and derives the global cap.
func (c Config) withDefaults() Config {
	anyUnlimited := false
	sum := 0
	for p := 0; p < NumPriorities; p++ {
		if c.QueueCapacity[p] <= 0 {
			c.QueueCapacity[p] = DefaultQueueCapacity
		}
		if c.MaxConcurrency[p] <= 0 {
			c.MaxConcurrency[p] = Unlimited
		}
		if c.MaxConcurrency[p] == Unlimited {
			anyUnlimited = true
		} else {
			sum += c.MaxConcurrency[p]
		}
	}
	if c.MaxTotalConcurrency <= 0 {
		if anyUnlimited {
			c.MaxTotalConcurrency = Unlimited
		} else {
			c.MaxTotalConcurrency = int(math.Ceil(float64(sum) * 1.2))
		}
	}
	if c.MaxHighPriorityStreak <= 0 {
		c.MaxHighPriorityStreak = DefaultMaxHighPriorityStreak
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = DefaultIdleSleep
	}
	if c.SummaryInterval <= 0 {
		c.SummaryInterval = DefaultSummaryInterval
	}
	return c
}
