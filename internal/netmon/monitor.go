// Package netmon tracks network connectivity and schedules reconnection
// checks with exponential backoff.
package netmon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/altuslabsxyz/txrelay/internal/sched"
)

// ErrClosed is returned by WaitOnline after the monitor is closed.
var ErrClosed = errors.New("network monitor closed")

// Status is one connectivity observation.
type Status struct {
	Offline         bool
	JustReconnected bool

	// Attempt is the number of failed re-checks since going offline.
	Attempt int

	// NextRetryIn is the time until the next re-check, measured when the
	// status was produced. Zero while online.
	NextRetryIn time.Duration
}

// Config configures a Monitor.
type Config struct {
	// BaseDelay is the first re-check delay after going offline.
	BaseDelay time.Duration

	// MaxDelay caps the re-check delay.
	MaxDelay time.Duration

	// ReconnectedWindow is how long JustReconnected stays set.
	ReconnectedWindow time.Duration

	// ProbeInterval is the period of the safety-net snapshot check.
	// Zero disables it (development mode).
	ProbeInterval time.Duration

	// CheckTimeout bounds each snapshot check.
	CheckTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		ReconnectedWindow: DefaultReconnectedWindow,
		ProbeInterval:     DefaultProbeInterval,
		CheckTimeout:      10 * time.Second,
	}
}

// Monitor is the single source of truth for whether the network is usable.
// It never fails; when the signal cannot be read it assumes online.
type Monitor struct {
	signal Signal
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger

	recheck   *sched.Slot
	reconnect *sched.Slot

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	done      chan struct{}

	mu      sync.Mutex
	status  Status
	retryAt time.Time
	online  chan struct{}
	subs    map[int]chan Status
	nextSub int
	started bool
	closed  bool
}

// NewMonitor creates a Monitor reading connectivity from signal. A nil
// signal is treated as always online.
func NewMonitor(signal Signal, cfg Config) *Monitor {
	def := DefaultConfig()
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.ReconnectedWindow == 0 {
		cfg.ReconnectedWindow = def.ReconnectedWindow
	}
	if cfg.CheckTimeout == 0 {
		cfg.CheckTimeout = def.CheckTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	online := make(chan struct{})
	close(online)

	return &Monitor{
		signal:    signal,
		cfg:       cfg,
		clock:     cfg.Clock,
		logger:    logger,
		recheck:   sched.NewSlot(cfg.Clock),
		reconnect: sched.NewSlot(cfg.Clock),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		online:    online,
		subs:      make(map[int]chan Status),
	}
}

// Observe returns a fresh subscription that first yields the current status
// and then every change until ctx is done or the monitor is closed. Slow
// readers only see the latest status.
func (m *Monitor) Observe(ctx context.Context) <-chan Status {
	m.startOnce.Do(m.start)

	ch := make(chan Status, 1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	offer(ch, m.snapshotLocked())
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-m.ctx.Done():
		}
		m.unsubscribe(id)
	}()

	return ch
}

// Status returns the current status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Countdown returns the time until the next re-check, or zero while online.
func (m *Monitor) Countdown() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countdownLocked()
}

// WaitOnline blocks until the monitor reports online. It returns
// immediately when already online.
func (m *Monitor) WaitOnline(ctx context.Context) error {
	m.startOnce.Do(m.start)

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return ErrClosed
		}
		if !m.status.Offline {
			m.mu.Unlock()
			return nil
		}
		online := m.online
		m.mu.Unlock()

		select {
		case <-online:
		case <-m.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SetOnline feeds an externally observed transition into the monitor.
func (m *Monitor) SetOnline(online bool) {
	if online {
		m.goOnline("event")
	} else {
		m.goOffline()
	}
}

// Close stops every timer, ends all subscriptions and waits for the
// background loop to exit.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.recheck.Stop()
	m.reconnect.Stop()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
	started := m.started
	m.mu.Unlock()

	m.cancel()
	if started {
		<-m.done
	}
	return nil
}

func (m *Monitor) start() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	var ticker *clock.Ticker
	if m.cfg.ProbeInterval > 0 {
		ticker = m.clock.Ticker(m.cfg.ProbeInterval)
	}
	go m.run(ticker)
}

func (m *Monitor) run(ticker *clock.Ticker) {
	defer close(m.done)

	var events <-chan bool
	if m.signal != nil {
		events = m.signal.Events()
	}

	m.check("startup")

	var tick <-chan time.Time
	if ticker != nil {
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-m.ctx.Done():
			return
		case online, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			m.SetOnline(online)
		case <-tick:
			m.check("probe")
		}
	}
}

// Check takes a connectivity snapshot now, applies it and returns the
// resulting status.
func (m *Monitor) Check(ctx context.Context) Status {
	m.startOnce.Do(m.start)
	if m.signal != nil {
		ctx, cancel := context.WithTimeout(ctx, m.cfg.CheckTimeout)
		defer cancel()
		if online, err := m.signal.Online(ctx); err == nil {
			m.SetOnline(online)
		} else {
			m.logger.Debug("connectivity snapshot unavailable", "reason", "check", "error", err)
		}
	}
	return m.Status()
}

// check takes a snapshot and applies it. A failed snapshot leaves the
// current state unchanged.
func (m *Monitor) check(reason string) {
	if m.signal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.CheckTimeout)
	defer cancel()

	online, err := m.signal.Online(ctx)
	if err != nil {
		m.logger.Debug("connectivity snapshot unavailable", "reason", reason, "error", err)
		return
	}
	m.SetOnline(online)
}

func (m *Monitor) goOffline() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.status.Offline {
		return
	}
	m.reconnect.Stop()
	m.status = Status{Offline: true}
	m.online = make(chan struct{})
	m.scheduleRecheckLocked()

	m.logger.Warn("network offline", "nextRetryIn", m.countdownLocked())
	m.publishLocked()
}

func (m *Monitor) goOnline(via string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.status.Offline {
		return
	}
	m.recheck.Stop()
	attempts := m.status.Attempt
	m.status = Status{JustReconnected: true}
	m.retryAt = time.Time{}
	close(m.online)
	m.reconnect.Schedule(m.cfg.ReconnectedWindow, m.clearReconnected)

	m.logger.Info("network reconnected", "via", via, "failedChecks", attempts)
	m.publishLocked()
}

func (m *Monitor) scheduleRecheckLocked() {
	d := Delay(m.status.Attempt, m.cfg.BaseDelay, m.cfg.MaxDelay)
	m.retryAt = m.clock.Now().Add(d)
	m.recheck.Schedule(d, m.recheckNow)
}

// recheckNow runs a scheduled re-check. Like check, a failed snapshot
// leaves the state unchanged: the attempt count stays and the same delay is
// scheduled again.
func (m *Monitor) recheckNow() {
	online := true
	var err error
	if m.signal != nil {
		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.CheckTimeout)
		online, err = m.signal.Online(ctx)
		cancel()
	}
	if err == nil && online {
		m.goOnline("recheck")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.status.Offline {
		return
	}
	if err != nil {
		m.logger.Debug("connectivity snapshot unavailable", "reason", "recheck", "attempt", m.status.Attempt, "error", err)
	} else {
		m.status.Attempt++
	}
	m.scheduleRecheckLocked()

	m.logger.Debug("still offline", "attempt", m.status.Attempt, "nextRetryIn", m.countdownLocked())
	m.publishLocked()
}

func (m *Monitor) clearReconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.status.Offline || !m.status.JustReconnected {
		return
	}
	m.status.JustReconnected = false
	m.publishLocked()
}

func (m *Monitor) unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subs[id]; ok {
		close(ch)
		delete(m.subs, id)
	}
}

func (m *Monitor) snapshotLocked() Status {
	st := m.status
	st.NextRetryIn = m.countdownLocked()
	return st
}

func (m *Monitor) countdownLocked() time.Duration {
	if !m.status.Offline || m.retryAt.IsZero() {
		return 0
	}
	if d := m.retryAt.Sub(m.clock.Now()); d > 0 {
		return d
	}
	return 0
}

func (m *Monitor) publishLocked() {
	st := m.snapshotLocked()
	for _, ch := range m.subs {
		offer(ch, st)
	}
}

// offer delivers st, replacing an unread older status.
func offer(ch chan Status, st Status) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
