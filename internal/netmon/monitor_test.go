package netmon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T, sig Signal) (*Monitor, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	m := NewMonitor(sig, Config{Clock: mock})
	t.Cleanup(func() { m.Close() })
	return m, mock
}

// waitFor reads statuses until one satisfies match.
func waitFor(t *testing.T, ch <-chan Status, match func(Status) bool) Status {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				t.Fatal("status channel closed")
			}
			if match(st) {
				return st
			}
		case <-deadline:
			t.Fatal("timed out waiting for status")
		}
	}
}

func TestDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{5, 160 * time.Second},
		{6, 300 * time.Second},
		{-1, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := Delay(tt.attempt, DefaultBaseDelay, DefaultMaxDelay); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelay_NeverExceedsCap(t *testing.T) {
	for attempt := 0; attempt < 10000; attempt += 37 {
		if got := Delay(attempt, DefaultBaseDelay, DefaultMaxDelay); got > DefaultMaxDelay {
			t.Fatalf("Delay(%d) = %v exceeds cap", attempt, got)
		}
	}
}

func TestMonitor_StartsOnline(t *testing.T) {
	m, _ := newTestMonitor(t, NewManualSignal(true))

	st := <-m.Observe(context.Background())
	assert.False(t, st.Offline)
	assert.False(t, st.JustReconnected)
	assert.Zero(t, m.Countdown())
}

func TestMonitor_SnapshotErrorAssumesOnline(t *testing.T) {
	sig := NewManualSignal(false)
	sig.SetSnapshotError(errors.New("no signal"))
	m, _ := newTestMonitor(t, sig)

	st := <-m.Observe(context.Background())
	assert.False(t, st.Offline)
	require.NoError(t, m.WaitOnline(context.Background()))
}

func TestMonitor_CheckAppliesSnapshot(t *testing.T) {
	m, _ := newTestMonitor(t, NewManualSignal(false))

	st := m.Check(context.Background())
	assert.True(t, st.Offline)
	assert.Equal(t, 5*time.Second, st.NextRetryIn)
}

func TestMonitor_BackoffWhileOffline(t *testing.T) {
	sig := NewManualSignal(true)
	m, mock := newTestMonitor(t, sig)
	ch := m.Observe(context.Background())

	sig.Set(false)
	st := waitFor(t, ch, func(s Status) bool { return s.Offline })
	assert.Equal(t, 0, st.Attempt)
	assert.Equal(t, 5*time.Second, st.NextRetryIn)

	mock.Add(2 * time.Second)
	assert.Equal(t, 3*time.Second, m.Countdown())

	mock.Add(3 * time.Second)
	st = waitFor(t, ch, func(s Status) bool { return s.Attempt == 1 })
	assert.True(t, st.Offline)
	assert.Equal(t, 10*time.Second, st.NextRetryIn)

	mock.Add(10 * time.Second)
	st = waitFor(t, ch, func(s Status) bool { return s.Attempt == 2 })
	assert.Equal(t, 20*time.Second, st.NextRetryIn)
}

func TestMonitor_RecheckSnapshotErrorKeepsAttempt(t *testing.T) {
	sig := NewManualSignal(true)
	m, mock := newTestMonitor(t, sig)
	ch := m.Observe(context.Background())

	sig.Set(false)
	waitFor(t, ch, func(s Status) bool { return s.Offline })

	sig.SetSnapshotError(errors.New("health endpoint unreachable"))
	mock.Add(5 * time.Second)
	st := waitFor(t, ch, func(s Status) bool { return s.Offline })
	assert.Equal(t, 0, st.Attempt)
	assert.Equal(t, 5*time.Second, st.NextRetryIn)

	sig.SetSnapshotError(nil)
	mock.Add(5 * time.Second)
	st = waitFor(t, ch, func(s Status) bool { return s.Attempt == 1 })
	assert.True(t, st.Offline)
	assert.Equal(t, 10*time.Second, st.NextRetryIn)
	assert.Equal(t, 10*time.Second, m.Countdown())
}

func TestMonitor_RecheckDetectsReconnect(t *testing.T) {
	sig := NewManualSignal(true)
	m, mock := newTestMonitor(t, sig)
	ch := m.Observe(context.Background())

	sig.Set(false)
	waitFor(t, ch, func(s Status) bool { return s.Offline })

	// Connectivity returns without a native event; the re-check finds it.
	sig.mu.Lock()
	sig.online = true
	sig.mu.Unlock()

	mock.Add(5 * time.Second)
	st := waitFor(t, ch, func(s Status) bool { return !s.Offline })
	assert.True(t, st.JustReconnected)
	assert.Equal(t, 0, st.Attempt)
}

func TestMonitor_ReconnectedClearsAfterWindow(t *testing.T) {
	sig := NewManualSignal(true)
	m, mock := newTestMonitor(t, sig)
	ch := m.Observe(context.Background())

	sig.Set(false)
	waitFor(t, ch, func(s Status) bool { return s.Offline })
	mock.Add(5 * time.Second)
	waitFor(t, ch, func(s Status) bool { return s.Attempt == 1 })

	sig.Set(true)
	st := waitFor(t, ch, func(s Status) bool { return !s.Offline })
	assert.True(t, st.JustReconnected)
	assert.Equal(t, 0, st.Attempt, "attempt resets on reconnect")

	mock.Add(5 * time.Second)
	st = waitFor(t, ch, func(s Status) bool { return !s.JustReconnected })
	assert.False(t, st.Offline)
}

func TestMonitor_SingleRecheckTimer(t *testing.T) {
	sig := NewManualSignal(true)
	m, mock := newTestMonitor(t, sig)
	ch := m.Observe(context.Background())

	sig.Set(false)
	waitFor(t, ch, func(s Status) bool { return s.Offline })

	// A repeated offline event must not stack another timer.
	m.SetOnline(false)
	m.SetOnline(false)

	mock.Add(5 * time.Second)
	waitFor(t, ch, func(s Status) bool { return s.Attempt == 1 })

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, m.Status().Attempt)
}

func TestMonitor_ObserveIsRestartable(t *testing.T) {
	sig := NewManualSignal(true)
	m, _ := newTestMonitor(t, sig)

	ctx, cancel := context.WithCancel(context.Background())
	first := m.Observe(ctx)
	<-first
	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-first:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	sig.Set(false)
	require.Eventually(t, func() bool { return m.Status().Offline }, time.Second, 5*time.Millisecond)

	st := <-m.Observe(context.Background())
	assert.True(t, st.Offline, "a new subscription starts with the current status")
}

func TestMonitor_WaitOnline(t *testing.T) {
	sig := NewManualSignal(true)
	m, _ := newTestMonitor(t, sig)
	ch := m.Observe(context.Background())

	require.NoError(t, m.WaitOnline(context.Background()))

	sig.Set(false)
	waitFor(t, ch, func(s Status) bool { return s.Offline })

	done := make(chan error, 1)
	go func() { done <- m.WaitOnline(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitOnline returned while offline")
	case <-time.After(20 * time.Millisecond):
	}

	sig.Set(true)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitOnline did not return after reconnect")
	}
}

func TestMonitor_WaitOnlineContextCancelled(t *testing.T) {
	sig := NewManualSignal(true)
	m, _ := newTestMonitor(t, sig)
	ch := m.Observe(context.Background())

	sig.Set(false)
	waitFor(t, ch, func(s Status) bool { return s.Offline })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.WaitOnline(ctx), context.DeadlineExceeded)
}

func TestMonitor_CloseCancelsTimers(t *testing.T) {
	sig := NewManualSignal(true)
	mock := clock.NewMock()
	m := NewMonitor(sig, Config{Clock: mock})
	ch := m.Observe(context.Background())

	sig.Set(false)
	waitFor(t, ch, func(s Status) bool { return s.Offline })
	require.True(t, m.recheck.Pending())

	require.NoError(t, m.Close())
	assert.False(t, m.recheck.Pending())
	assert.False(t, m.reconnect.Pending())

	for range ch {
	}
	assert.ErrorIs(t, m.WaitOnline(context.Background()), ErrClosed)

	// Closed monitors hand out closed subscriptions.
	_, ok := <-m.Observe(context.Background())
	assert.False(t, ok)
}

func TestMonitor_PeriodicProbe(t *testing.T) {
	sig := NewManualSignal(true)
	mock := clock.NewMock()
	m := NewMonitor(sig, Config{Clock: mock, ProbeInterval: 300 * time.Second})
	defer m.Close()
	ch := m.Observe(context.Background())
	<-ch

	// The state changes without an event; only the periodic probe sees it.
	sig.mu.Lock()
	sig.online = false
	sig.mu.Unlock()

	mock.Add(300 * time.Second)
	st := waitFor(t, ch, func(s Status) bool { return s.Offline })
	assert.Equal(t, 0, st.Attempt)
}

func TestProbeSignal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	url := server.URL

	p := NewProbeSignal(ProbeConfig{URL: url, Timeout: time.Second})
	online, err := p.Online(context.Background())
	require.NoError(t, err)
	assert.True(t, online, "any HTTP response counts as online")
	assert.Nil(t, p.Events())

	server.Close()
	online, err = p.Online(context.Background())
	require.NoError(t, err)
	assert.False(t, online)
}
