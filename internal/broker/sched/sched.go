// Package sched arms the broker's periodic timers: ping and disconnect are
// per-subscriber; memory cleanup and buffer cleanup are process-wide. Each
// timer is armed only if its interval is configured (> 0); re-arming after
// Stop is a no-op because ports.TimerHandle.Stop() is terminal.
package sched

import (
	"time"

	"github.com/streamhub/streamhub/internal/core/ports"
)

// Intervals bundles the four configured timer periods. A zero value for
// any field disables that timer.
type Intervals struct {
	Ping             time.Duration
	Disconnect       time.Duration
	MemoryCleanup    time.Duration
	BufferCleanup    time.Duration
}

// Scheduler arms the two process-wide cleanup timers and exposes helpers
// for arming the two per-subscriber timers on demand.
type Scheduler struct {
	timers    ports.Timers
	intervals Intervals

	memoryHandle ports.TimerHandle
	bufferHandle ports.TimerHandle
}

// New creates a scheduler bound to a host Timers implementation.
func New(timers ports.Timers, intervals Intervals) *Scheduler {
	return &Scheduler{timers: timers, intervals: intervals}
}

// StartCleanupTimers arms the memory-cleanup and buffer-cleanup timers if
// their intervals are configured.
func (s *Scheduler) StartCleanupTimers(memoryCleanup, bufferCleanup func()) {
	if s.intervals.MemoryCleanup > 0 {
		s.memoryHandle = s.timers.Every(s.intervals.MemoryCleanup, memoryCleanup)
	}
	if s.intervals.BufferCleanup > 0 {
		s.bufferHandle = s.timers.Every(s.intervals.BufferCleanup, bufferCleanup)
	}
}

// Stop cancels both process-wide cleanup timers.
func (s *Scheduler) Stop() {
	if s.memoryHandle != nil {
		s.memoryHandle.Stop()
	}
	if s.bufferHandle != nil {
		s.bufferHandle.Stop()
	}
}

// ArmPing arms a subscriber's ping timer if pings are configured,
// returning nil otherwise.
func (s *Scheduler) ArmPing(fire func()) ports.TimerHandle {
	if s.intervals.Ping <= 0 {
		return nil
	}
	return s.timers.Every(s.intervals.Ping, fire)
}

// ArmDisconnect arms a subscriber's disconnect timer if a disconnect
// interval is configured, returning nil otherwise (disconnect is
// documented as optional per-subscriber).
func (s *Scheduler) ArmDisconnect(fire func()) ports.TimerHandle {
	if s.intervals.Disconnect <= 0 {
		return nil
	}
	return s.timers.After(s.intervals.Disconnect, fire)
}
