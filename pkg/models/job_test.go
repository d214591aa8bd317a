package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusCanTransitionTo(t *testing.T) {
	// 前進遷移はすべて許可される
	assert.True(t, JobStatusPending.CanTransitionTo(JobStatusQueued))
	assert.True(t, JobStatusPending.CanTransitionTo(JobStatusRunning))
	assert.True(t, JobStatusPending.CanTransitionTo(JobStatusCancelled))
	assert.True(t, JobStatusQueued.CanTransitionTo(JobStatusRunning))
	assert.True(t, JobStatusQueued.CanTransitionTo(JobStatusFailed))
	assert.True(t, JobStatusRunning.CanTransitionTo(JobStatusCompleted))
	assert.True(t, JobStatusRunning.CanTransitionTo(JobStatusFailed))
	assert.True(t, JobStatusRunning.CanTransitionTo(JobStatusCancelled))
}

func TestJobStatusRejectsBackwardTransitions(t *testing.T) {
	assert.False(t, JobStatusRunning.CanTransitionTo(JobStatusQueued))
	assert.False(t, JobStatusRunning.CanTransitionTo(JobStatusPending))
	assert.False(t, JobStatusQueued.CanTransitionTo(JobStatusPending))

	// 同一状態への遷移も拒否される
	assert.False(t, JobStatusRunning.CanTransitionTo(JobStatusRunning))
}

func TestJobStatusTerminalIsImmutable(t *testing.T) {
	terminals := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
	all := []JobStatus{
		JobStatusPending, JobStatusQueued, JobStatusRunning,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled,
	}

	// 終端状態からはどの状態へも遷移できない（終端間の遷移も含む）
	for _, from := range terminals {
		assert.True(t, from.IsTerminal())
		for _, to := range all {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s は拒否されるべき", from, to)
		}
	}
}

func TestJobStatusValid(t *testing.T) {
	assert.True(t, JobStatusPending.Valid())
	assert.True(t, JobStatusCancelled.Valid())
	assert.False(t, JobStatus("unknown").Valid())
	assert.False(t, JobStatus("").Valid())
}

func TestJobStatusUnknownCannotTransition(t *testing.T) {
	assert.False(t, JobStatus("unknown").CanTransitionTo(JobStatusRunning))
	assert.False(t, JobStatusPending.CanTransitionTo(JobStatus("unknown")))
}
