package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func snapshotPair() (Snapshot, Snapshot) {
	base := Snapshot{
		Priorities: []PrioritySnapshot{
			{Priority: "Immediate", QueueSize: 1, ActiveCount: 2},
			{Priority: "Normal", QueueSize: 0, ActiveCount: 0},
		},
		TasksStarted:   10,
		TasksCompleted: 8,
	}
	other := Snapshot{
		Priorities: []PrioritySnapshot{
			{Priority: "Immediate", QueueSize: 1, ActiveCount: 2},
			{Priority: "Normal", QueueSize: 0, ActiveCount: 0},
		},
		TasksStarted:   10,
		TasksCompleted: 8,
	}
	return base, other
}

func TestChanged_Identical(t *testing.T) {
	a, b := snapshotPair()
	assert.False(t, Changed(a, b))
}

func TestChanged_TaskCounts(t *testing.T) {
	a, b := snapshotPair()
	b.TasksCompleted++
	assert.True(t, Changed(a, b))

	a, b = snapshotPair()
	b.TasksDropped = 1
	assert.True(t, Changed(a, b))
}

func TestChanged_QueueSize(t *testing.T) {
	a, b := snapshotPair()
	b.Priorities[1].QueueSize = 3
	assert.True(t, Changed(a, b))
}

func TestChanged_ActiveCount(t *testing.T) {
	a, b := snapshotPair()
	b.Priorities[0].ActiveCount = 5
	assert.True(t, Changed(a, b))
}

func TestChanged_TimestampOnlyIsNotMaterial(t *testing.T) {
	a, b := snapshotPair()
	b.Timestamp = b.Timestamp.Add(1)
	assert.False(t, Changed(a, b), "timestamps alone never trigger a notification")
}

func TestChanged_ShapeDifference(t *testing.T) {
	a, b := snapshotPair()
	b.Priorities = b.Priorities[:1]
	assert.True(t, Changed(a, b))
}
