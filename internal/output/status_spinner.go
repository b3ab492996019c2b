package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StatusSpinner animates a single status line on a terminal. The message
// can be replaced while it runs. Every write happens under mu.
type StatusSpinner struct {
	out   io.Writer
	clock clock.Clock
	every time.Duration

	mu      sync.Mutex
	msg     string
	frame   int
	halt    chan struct{} // nil while stopped
	stopped chan struct{}
}

// NewStatusSpinnerTo creates a StatusSpinner writing to w.
func NewStatusSpinnerTo(w io.Writer) *StatusSpinner {
	return newStatusSpinner(w, clock.New())
}

func newStatusSpinner(w io.Writer, clk clock.Clock) *StatusSpinner {
	return &StatusSpinner{out: w, clock: clk, every: 100 * time.Millisecond}
}

// Start animates msg. It is a no-op while already running.
func (s *StatusSpinner) Start(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halt != nil {
		return
	}
	s.msg = msg

	halt, stopped := make(chan struct{}), make(chan struct{})
	s.halt, s.stopped = halt, stopped
	ticker := s.clock.Ticker(s.every)

	go func() {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case <-halt:
				return
			case <-ticker.C:
				s.mu.Lock()
				s.drawLocked()
				s.mu.Unlock()
			}
		}
	}()
}

// Update replaces the message, redrawing at once while running.
func (s *StatusSpinner) Update(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msg = msg
	if s.halt != nil {
		s.drawLocked()
	}
}

// Message returns the current message.
func (s *StatusSpinner) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msg
}

// Stop ends the animation and clears the line. Safe to call repeatedly.
func (s *StatusSpinner) Stop() {
	s.mu.Lock()
	halt, stopped := s.halt, s.stopped
	s.halt, s.stopped = nil, nil
	s.mu.Unlock()
	if halt == nil {
		return
	}

	close(halt)
	<-stopped

	s.mu.Lock()
	fmt.Fprint(s.out, "\r\033[K")
	s.mu.Unlock()
}

func (s *StatusSpinner) drawLocked() {
	fmt.Fprintf(s.out, "\r\033[K%s %s", spinnerFrames[s.frame], s.msg)
	s.frame = (s.frame + 1) % len(spinnerFrames)
}
