//go:build linux

package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRecording(t *testing.T) {
	m := &Metrics{}

	m.RecordAttach(true, false, 100*time.Millisecond)
	m.RecordAttach(true, false, 200*time.Millisecond)
	m.RecordAttach(false, true, 50*time.Millisecond)  // failure with rollback
	m.RecordAttach(false, false, 75*time.Millisecond) // failure on first network

	assert.Equal(t, int64(4), m.AttachAttempts.Load())
	assert.Equal(t, int64(2), m.AttachSuccesses.Load())
	assert.Equal(t, int64(2), m.AttachFailures.Load())
	assert.Equal(t, int64(1), m.Rollbacks.Load())

	m.RecordDetach(true, 50*time.Millisecond)
	m.RecordDetach(false, 30*time.Millisecond)

	assert.Equal(t, int64(2), m.DetachAttempts.Load())
	assert.Equal(t, int64(1), m.DetachSuccesses.Load())
	assert.Equal(t, int64(1), m.DetachFailures.Load())

	m.RecordCleanupFailure()
	assert.Equal(t, int64(1), m.CleanupFailures.Load())
}

func TestMetricsSnapshot(t *testing.T) {
	t.Run("with recorded operations", func(t *testing.T) {
		m := &Metrics{}
		m.RecordAttach(true, false, 100*time.Millisecond)
		m.RecordAttach(true, false, 200*time.Millisecond)
		m.RecordDetach(true, 50*time.Millisecond)
		m.RecordCleanupFailure()

		snap := m.Snapshot()

		assert.Equal(t, int64(2), snap.AttachAttempts)
		assert.Equal(t, int64(2), snap.AttachSuccesses)
		assert.Equal(t, int64(0), snap.AttachFailures)
		assert.Equal(t, int64(1), snap.DetachAttempts)
		assert.Equal(t, int64(1), snap.CleanupFailures)
		assert.InDelta(t, 150.0, snap.AvgAttachTimeMs, 1.0)
		assert.InDelta(t, 50.0, snap.AvgDetachTimeMs, 1.0)
	})

	t.Run("empty metrics", func(t *testing.T) {
		m := &Metrics{}
		snap := m.Snapshot()

		assert.Equal(t, int64(0), snap.AttachAttempts)
		assert.InDelta(t, 0.0, snap.AvgAttachTimeMs, 0.001)
		assert.InDelta(t, 0.0, snap.AvgDetachTimeMs, 0.001)
	})
}

func TestMetricsReset(t *testing.T) {
	m := &Metrics{}

	m.RecordAttach(true, true, 100*time.Millisecond)
	m.RecordDetach(true, 50*time.Millisecond)
	m.RecordCleanupFailure()

	m.Reset()

	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}
