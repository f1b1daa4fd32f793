// Package config holds the typed settings consumed by the scheduler, graph,
// and protocol glue, plus the change bus that delivers live updates.
package config

import (
	"strings"
	"time"

	"github.com/apexls/apexls/internal/scheduler"
)

// Platform names recognized in apex.environment.runtimePlatform.
const (
	PlatformDesktop = "desktop"
	PlatformWeb     = "web"
)

// Settings is the full typed configuration tree. Field layout mirrors the
// apex.* settings keys.
type Settings struct {
	LogLevel    string      `json:"log_level"`
	Environment Environment `json:"environment"`

	QueueProcessing     QueueProcessing     `json:"queue_processing"`
	Scheduler           SchedulerSettings   `json:"scheduler"`
	FindMissingArtifact FindMissingArtifact `json:"find_missing_artifact"`
}

// Environment selects platform-dependent behavior.
type Environment struct {
	RuntimePlatform string `json:"runtime_platform"` // desktop | web
}

// QueueProcessing maps apex.queueProcessing.*.
type QueueProcessing struct {
	// MaxConcurrency is keyed by priority name (IMMEDIATE, HIGH, NORMAL,
	// LOW). Zero or missing means unlimited.
	MaxConcurrency map[string]int `json:"max_concurrency"`
	YieldInterval  int            `json:"yield_interval"`
	YieldDelayMs   int            `json:"yield_delay_ms"`
}

// SchedulerSettings maps apex.scheduler.*.
type SchedulerSettings struct {
	// QueueCapacity is keyed by priority name (CRITICAL through BACKGROUND).
	QueueCapacity         map[string]int `json:"queue_capacity"`
	MaxHighPriorityStreak int            `json:"max_high_priority_streak"`
	IdleSleepMs           int            `json:"idle_sleep_ms"`
}

// FindMissingArtifact maps apex.findMissingArtifact.*.
type FindMissingArtifact struct {
	Enabled             bool `json:"enabled"`
	MaxCandidatesToOpen int  `json:"max_candidates_to_open"`
	TimeoutMsHint       int  `json:"timeout_ms_hint"`
}

// Default returns the documented defaults.
func Default() *Settings {
	return &Settings{
		LogLevel: "info",
		Environment: Environment{
			RuntimePlatform: PlatformDesktop,
		},
		QueueProcessing: QueueProcessing{
			MaxConcurrency: map[string]int{},
		},
		Scheduler: SchedulerSettings{
			QueueCapacity:         map[string]int{},
			MaxHighPriorityStreak: scheduler.DefaultMaxHighPriorityStreak,
			IdleSleepMs:           1,
		},
		FindMissingArtifact: FindMissingArtifact{
			Enabled:             true,
			MaxCandidatesToOpen: 3,
			TimeoutMsHint:       2000,
		},
	}
}

// priorityByName maps the uppercase settings key to a scheduler priority.
var priorityByName = map[string]scheduler.Priority{
	"CRITICAL":   scheduler.PriorityCritical,
	"IMMEDIATE":  scheduler.PriorityImmediate,
	"HIGH":       scheduler.PriorityHigh,
	"NORMAL":     scheduler.PriorityNormal,
	"LOW":        scheduler.PriorityLow,
	"BACKGROUND": scheduler.PriorityBackground,
}

// SchedulerConfig translates settings into the scheduler's configuration.
func (s *Settings) SchedulerConfig() scheduler.Config {
	cfg := scheduler.DefaultConfig()

	for name, limit := range s.QueueProcessing.MaxConcurrency {
		p, ok := priorityByName[strings.ToUpper(name)]
		if !ok || limit <= 0 {
			continue
		}
		cfg.MaxConcurrency[p] = limit
	}
	// Re-derive the global cap from the per-priority limits.
	cfg.MaxTotalConcurrency = 0

	for name, capacity := range s.Scheduler.QueueCapacity {
		p, ok := priorityByName[strings.ToUpper(name)]
		if !ok || capacity <= 0 {
			continue
		}
		cfg.QueueCapacity[p] = capacity
	}

	if s.Scheduler.MaxHighPriorityStreak > 0 {
		cfg.MaxHighPriorityStreak = s.Scheduler.MaxHighPriorityStreak
	}
	if s.Scheduler.IdleSleepMs > 0 {
		cfg.IdleSleep = time.Duration(s.Scheduler.IdleSleepMs) * time.Millisecond
	}
	return cfg
}

// Clone deep-copies the settings so subscribers can diff old against new.
func (s *Settings) Clone() *Settings {
	out := *s
	out.QueueProcessing.MaxConcurrency = make(map[string]int, len(s.QueueProcessing.MaxConcurrency))
	for k, v := range s.QueueProcessing.MaxConcurrency {
		out.QueueProcessing.MaxConcurrency[k] = v
	}
	out.Scheduler.QueueCapacity = make(map[string]int, len(s.Scheduler.QueueCapacity))
	for k, v := range s.Scheduler.QueueCapacity {
		out.Scheduler.QueueCapacity[k] = v
	}
	return &out
}
