package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"error": true,
	"warn":  true,
	"info":  true,
	"debug": true,
}

// Validate checks value ranges and enumerations. Returns the first problem
// found.
func (s *Settings) Validate() error {
	if !validLogLevels[strings.ToLower(s.LogLevel)] {
		return fmt.Errorf("invalid log_level %q: want error|warn|info|debug", s.LogLevel)
	}

	switch s.Environment.RuntimePlatform {
	case PlatformDesktop, PlatformWeb:
	default:
		return fmt.Errorf("invalid runtime_platform %q: want desktop|web", s.Environment.RuntimePlatform)
	}

	for name, v := range s.QueueProcessing.MaxConcurrency {
		if _, ok := priorityByName[strings.ToUpper(name)]; !ok {
			return fmt.Errorf("unknown priority %q in queue_processing.max_concurrency", name)
		}
		if v < 0 {
			return fmt.Errorf("queue_processing.max_concurrency.%s must not be negative, got %d", name, v)
		}
	}

	for name, v := range s.Scheduler.QueueCapacity {
		if _, ok := priorityByName[strings.ToUpper(name)]; !ok {
			return fmt.Errorf("unknown priority %q in scheduler.queue_capacity", name)
		}
		if v < 0 {
			return fmt.Errorf("scheduler.queue_capacity.%s must not be negative, got %d", name, v)
		}
	}

	if s.Scheduler.MaxHighPriorityStreak < 0 {
		return fmt.Errorf("scheduler.max_high_priority_streak must not be negative, got %d", s.Scheduler.MaxHighPriorityStreak)
	}
	if s.Scheduler.IdleSleepMs < 0 {
		return fmt.Errorf("scheduler.idle_sleep_ms must not be negative, got %d", s.Scheduler.IdleSleepMs)
	}
	if s.FindMissingArtifact.MaxCandidatesToOpen < 0 {
		return fmt.Errorf("find_missing_artifact.max_candidates_to_open must not be negative, got %d", s.FindMissingArtifact.MaxCandidatesToOpen)
	}
	return nil
}
