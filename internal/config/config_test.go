package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexls/apexls/internal/scheduler"
)

const sampleKDL = `
log_level "debug"

environment {
    runtime_platform "web"
}

queue_processing {
    max_concurrency {
        immediate 8
        high 4
        normal 2
        low 1
    }
}

scheduler {
    queue_capacity {
        normal 50
        background 500
    }
    max_high_priority_streak 25
    idle_sleep_ms 2
}

find_missing_artifact {
    enabled true
    max_candidates_to_open 5
    timeout_ms_hint 1500
}
`

func TestParseKDL(t *testing.T) {
	cfg, err := parseKDL(sampleKDL)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, PlatformWeb, cfg.Environment.RuntimePlatform)
	assert.Equal(t, 8, cfg.QueueProcessing.MaxConcurrency["IMMEDIATE"])
	assert.Equal(t, 1, cfg.QueueProcessing.MaxConcurrency["LOW"])
	assert.Equal(t, 50, cfg.Scheduler.QueueCapacity["NORMAL"])
	assert.Equal(t, 25, cfg.Scheduler.MaxHighPriorityStreak)
	assert.Equal(t, 2, cfg.Scheduler.IdleSleepMs)
	assert.Equal(t, 5, cfg.FindMissingArtifact.MaxCandidatesToOpen)
}

func TestLoadKDL_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadKDL(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, PlatformDesktop, cfg.Environment.RuntimePlatform)
}

func TestLoadKDL_FromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".apexls.kdl"), []byte(sampleKDL), 0644))

	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []func(*Settings){
		func(s *Settings) { s.LogLevel = "verbose" },
		func(s *Settings) { s.Environment.RuntimePlatform = "mobile" },
		func(s *Settings) { s.QueueProcessing.MaxConcurrency["TURBO"] = 1 },
		func(s *Settings) { s.Scheduler.QueueCapacity["NORMAL"] = -1 },
		func(s *Settings) { s.Scheduler.MaxHighPriorityStreak = -5 },
	}
	for i, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), "case %d", i)
	}
}

func TestSchedulerConfig_Mapping(t *testing.T) {
	cfg, err := parseKDL(sampleKDL)
	require.NoError(t, err)

	sc := cfg.SchedulerConfig()
	assert.Equal(t, 8, sc.MaxConcurrency[scheduler.PriorityImmediate])
	assert.Equal(t, 4, sc.MaxConcurrency[scheduler.PriorityHigh])
	assert.Equal(t, 2, sc.MaxConcurrency[scheduler.PriorityNormal])
	assert.Equal(t, 1, sc.MaxConcurrency[scheduler.PriorityLow])
	assert.Equal(t, 50, sc.QueueCapacity[scheduler.PriorityNormal])
	assert.Equal(t, 500, sc.QueueCapacity[scheduler.PriorityBackground])
	assert.Equal(t, scheduler.DefaultQueueCapacity, sc.QueueCapacity[scheduler.PriorityImmediate])
	assert.Equal(t, 25, sc.MaxHighPriorityStreak)
	assert.Equal(t, 2*time.Millisecond, sc.IdleSleep)
}

func TestFilterCapabilities_Web(t *testing.T) {
	caps := map[string]any{
		"experimental": map[string]any{
			"profilingProvider": true,
			"otherFeature":      true,
		},
		"textDocument": map[string]any{"hover": true},
	}

	filtered := FilterCapabilities(caps, PlatformWeb)

	experimental := filtered["experimental"].(map[string]any)
	_, hasProfiling := experimental["profilingProvider"]
	assert.False(t, hasProfiling)
	assert.Equal(t, true, experimental["otherFeature"])
	assert.Contains(t, filtered, "textDocument")

	// Original untouched.
	assert.Contains(t, caps["experimental"].(map[string]any), "profilingProvider")
}

func TestFilterCapabilities_Desktop(t *testing.T) {
	caps := map[string]any{
		"experimental": map[string]any{
			"webviewBridge":     true,
			"profilingProvider": true,
		},
	}

	filtered := FilterCapabilities(caps, PlatformDesktop)
	experimental := filtered["experimental"].(map[string]any)
	_, hasBridge := experimental["webviewBridge"]
	assert.False(t, hasBridge)
	assert.Contains(t, experimental, "profilingProvider")
}

func TestBus_PublishNotifiesSubscribers(t *testing.T) {
	bus := NewBus(Default())

	var gotOld, gotNew string
	bus.Subscribe(func(old, next *Settings) error {
		gotOld = old.LogLevel
		gotNew = next.LogLevel
		return nil
	})

	next := Default()
	next.LogLevel = "debug"
	require.NoError(t, bus.Publish(next))

	assert.Equal(t, "info", gotOld)
	assert.Equal(t, "debug", gotNew)
	assert.Equal(t, "debug", bus.Current().LogLevel)
}

func TestBus_PublishRejectsInvalid(t *testing.T) {
	bus := NewBus(Default())
	bad := Default()
	bad.LogLevel = "shouty"
	assert.Error(t, bus.Publish(bad))
	assert.Equal(t, "info", bus.Current().LogLevel)
}

func TestBus_SubscriberRejectionDoesNotBlockChange(t *testing.T) {
	bus := NewBus(Default())
	bus.Subscribe(func(old, next *Settings) error {
		return assert.AnError
	})

	next := Default()
	next.LogLevel = "warn"
	require.NoError(t, bus.Publish(next), "rejections are logged, the change still lands")
	assert.Equal(t, "warn", bus.Current().LogLevel)
}
