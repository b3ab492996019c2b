// Package server implements the reward-ledger HTTP service used by ledgerd.
// It is the authority on reward uniqueness.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/altuslabsxyz/txrelay/internal/ledger/store"
	"github.com/altuslabsxyz/txrelay/internal/metrics"
)

// DefaultRewardAmount is credited when a grant carries no amount.
const DefaultRewardAmount int64 = 5

// Config configures a Server.
type Config struct {
	// Addr is the listen address for Run.
	Addr string

	// DefaultAmount is credited when a grant carries no positive amount.
	DefaultAmount int64

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	Metrics *metrics.Server
	Clock   clock.Clock
	Logger  *slog.Logger
}

// DefaultConfig returns a Config with defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8787",
		DefaultAmount:   DefaultRewardAmount,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server serves the reward API.
type Server struct {
	store  store.Store
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger
	router *mux.Router
}

// New creates a Server over st.
func New(st store.Store, cfg Config) *Server {
	if cfg.DefaultAmount <= 0 {
		cfg.DefaultAmount = DefaultRewardAmount
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:  st,
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/recordTweetReward", s.handleGrant).Methods(http.MethodPost)
	api.HandleFunc("/claimRewards", s.handleClaim).Methods(http.MethodPost)
	api.HandleFunc("/getRewards", s.handleRewards).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.cfg.Gatherer != nil {
		r.Path("/metrics").Handler(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on cfg.Addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("ledger server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down ledger server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// instrument records per-route request metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.cfg.Metrics.Request(route, rec.status, s.clock.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
