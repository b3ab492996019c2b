package netmon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Signal is a source of connectivity state.
type Signal interface {
	// Online reports the current connectivity snapshot.
	Online(ctx context.Context) (bool, error)

	// Events delivers connectivity transitions as they happen. A nil
	// channel means the source only supports snapshots.
	Events() <-chan bool
}

// ProbeSignal determines connectivity by issuing an HTTP request against an
// endpoint. Any HTTP response, whatever its status, counts as online.
type ProbeSignal struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// ProbeConfig configures a ProbeSignal.
type ProbeConfig struct {
	// URL is the endpoint to probe, usually the RPC endpoint.
	URL string

	// Timeout for each probe request.
	Timeout time.Duration

	// Logger for probe operations.
	Logger *slog.Logger
}

// NewProbeSignal creates a ProbeSignal.
func NewProbeSignal(cfg ProbeConfig) *ProbeSignal {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProbeSignal{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Online probes the endpoint. A transport failure reports offline; only a
// malformed request is returned as an error.
func (p *ProbeSignal) Online(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.logger.Debug("connectivity probe failed", "url", p.url, "error", err)
		return false, nil
	}
	resp.Body.Close()

	p.logger.Debug("connectivity probe ok", "url", p.url, "status", resp.StatusCode)
	return true, nil
}

// Events returns nil; ProbeSignal is snapshot-only.
func (p *ProbeSignal) Events() <-chan bool {
	return nil
}

// ManualSignal is a Signal whose state is set by the caller, for embedding
// applications that receive connectivity events from elsewhere.
type ManualSignal struct {
	mu     sync.Mutex
	online bool
	err    error
	events chan bool
}

// NewManualSignal creates a ManualSignal with the given initial state.
func NewManualSignal(online bool) *ManualSignal {
	return &ManualSignal{
		online: online,
		events: make(chan bool, 16),
	}
}

// Set records a connectivity transition and publishes it as an event.
// When the event buffer is full the oldest pending event is dropped.
func (s *ManualSignal) Set(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = online
	for {
		select {
		case s.events <- online:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// SetSnapshotError makes Online fail with err until cleared with nil.
func (s *ManualSignal) SetSnapshotError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Online returns the last state passed to Set.
func (s *ManualSignal) Online(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	return s.online, nil
}

// Events returns the transition channel.
func (s *ManualSignal) Events() <-chan bool {
	return s.events
}
