//go:build linux

package network

import (
	"sync/atomic"
	"time"
)

// Metrics tracks attach and detach statistics.
// All fields are safe for concurrent access.
type Metrics struct {
	// Attach metrics
	AttachAttempts  atomic.Int64
	AttachSuccesses atomic.Int64
	AttachFailures  atomic.Int64
	Rollbacks       atomic.Int64

	// Detach metrics
	DetachAttempts  atomic.Int64
	DetachSuccesses atomic.Int64
	DetachFailures  atomic.Int64

	// Host veth ends that could not be removed after a failed attach
	CleanupFailures atomic.Int64

	// Timing (nanoseconds, use time.Duration for display)
	TotalAttachTimeNs atomic.Int64
	TotalDetachTimeNs atomic.Int64
}

// RecordAttach records an attach attempt result. rolledBack reports that
// networks attached earlier in the same request were detached again.
func (m *Metrics) RecordAttach(success bool, rolledBack bool, duration time.Duration) {
	m.AttachAttempts.Add(1)
	m.TotalAttachTimeNs.Add(int64(duration))

	if success {
		m.AttachSuccesses.Add(1)
	} else {
		m.AttachFailures.Add(1)
	}
	if rolledBack {
		m.Rollbacks.Add(1)
	}
}

// RecordDetach records a detach attempt result.
func (m *Metrics) RecordDetach(success bool, duration time.Duration) {
	m.DetachAttempts.Add(1)
	m.TotalDetachTimeNs.Add(int64(duration))

	if success {
		m.DetachSuccesses.Add(1)
	} else {
		m.DetachFailures.Add(1)
	}
}

// RecordCleanupFailure records a host veth left behind by a failed attach.
func (m *Metrics) RecordCleanupFailure() {
	m.CleanupFailures.Add(1)
}

// Reset resets all metrics to zero.
func (m *Metrics) Reset() {
	m.AttachAttempts.Store(0)
	m.AttachSuccesses.Store(0)
	m.AttachFailures.Store(0)
	m.Rollbacks.Store(0)
	m.DetachAttempts.Store(0)
	m.DetachSuccesses.Store(0)
	m.DetachFailures.Store(0)
	m.CleanupFailures.Store(0)
	m.TotalAttachTimeNs.Store(0)
	m.TotalDetachTimeNs.Store(0)
}

// MetricsSnapshot is a point-in-time copy of metrics values.
type MetricsSnapshot struct {
	AttachAttempts  int64   `json:"attach_attempts"`
	AttachSuccesses int64   `json:"attach_successes"`
	AttachFailures  int64   `json:"attach_failures"`
	Rollbacks       int64   `json:"rollbacks"`
	DetachAttempts  int64   `json:"detach_attempts"`
	DetachSuccesses int64   `json:"detach_successes"`
	DetachFailures  int64   `json:"detach_failures"`
	CleanupFailures int64   `json:"cleanup_failures"`
	AvgAttachTimeMs float64 `json:"avg_attach_time_ms"`
	AvgDetachTimeMs float64 `json:"avg_detach_time_ms"`
}

// Snapshot returns a point-in-time copy of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	attachAttempts := m.AttachAttempts.Load()
	detachAttempts := m.DetachAttempts.Load()

	snap := MetricsSnapshot{
		AttachAttempts:  attachAttempts,
		AttachSuccesses: m.AttachSuccesses.Load(),
		AttachFailures:  m.AttachFailures.Load(),
		Rollbacks:       m.Rollbacks.Load(),
		DetachAttempts:  detachAttempts,
		DetachSuccesses: m.DetachSuccesses.Load(),
		DetachFailures:  m.DetachFailures.Load(),
		CleanupFailures: m.CleanupFailures.Load(),
	}

	if attachAttempts > 0 {
		snap.AvgAttachTimeMs = float64(m.TotalAttachTimeNs.Load()) / float64(attachAttempts) / 1e6
	}
	if detachAttempts > 0 {
		snap.AvgDetachTimeMs = float64(m.TotalDetachTimeNs.Load()) / float64(detachAttempts) / 1e6
	}

	return snap
}
