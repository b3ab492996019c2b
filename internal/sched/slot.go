// Package sched provides a single replaceable timer.
package sched

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Slot owns at most one pending timer. Scheduling a new callback replaces
// the pending one; a replaced or stopped callback never runs.
type Slot struct {
	clock clock.Clock

	mu    sync.Mutex
	timer *clock.Timer
	gen   uint64
}

// NewSlot creates a Slot driven by c. A nil clock uses the wall clock.
func NewSlot(c clock.Clock) *Slot {
	if c == nil {
		c = clock.New()
	}
	return &Slot{clock: c}
}

// Schedule arranges for fn to run after d, cancelling any pending callback.
// fn runs on its own goroutine.
func (s *Slot) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		fn()
	})
}

// Stop cancels the pending callback. It reports whether one was pending.
func (s *Slot) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.timer == nil {
		return false
	}
	s.timer.Stop()
	s.timer = nil
	return true
}

// Pending reports whether a callback is scheduled and has not fired.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
