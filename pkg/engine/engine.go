// Package engine assembles the mock server from its settings: the project
// store, the config cache, the matching engine, the route table and the
// connection server. It owns their lifecycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/getmockd/mockapi/internal/matching"
	"github.com/getmockd/mockapi/pkg/api"
	"github.com/getmockd/mockapi/pkg/cache"
	"github.com/getmockd/mockapi/pkg/config"
	"github.com/getmockd/mockapi/pkg/logging"
	"github.com/getmockd/mockapi/pkg/metrics"
	"github.com/getmockd/mockapi/pkg/router"
	"github.com/getmockd/mockapi/pkg/server"
	"github.com/getmockd/mockapi/pkg/store"
)

// Server is a fully wired mock server.
type Server struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Set

	store   *store.FileStore
	cache   *cache.Cache
	matcher *matching.Engine
	router  *router.Router
	srv     *server.Server

	mu        sync.Mutex
	ln        net.Listener
	running   bool
	startTime time.Time
	stopped   chan struct{}
	serveErr  error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger shared by every component.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics replaces the metric set created by New.
func WithMetrics(set *metrics.Set) Option {
	return func(s *Server) {
		if set != nil {
			s.metrics = set
		}
	}
}

// New validates cfg and builds every component. Nothing listens until Start.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{cfg: cfg, log: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	s.store = store.NewFileStore(cfg.DBRoot, store.WithLogger(s.log.With("component", "store")))
	s.cache = cache.New(s.store,
		cache.WithLogger(s.log.With("component", "cache")),
		cache.WithMetrics(s.metrics),
	)
	s.matcher = matching.New(
		matching.WithLogger(s.log.With("component", "matching")),
		matching.WithStrictBody(cfg.StrictBody),
	)

	deps := &api.Deps{
		Store:   s.store,
		Cache:   s.cache,
		Matcher: s.matcher,
		Metrics: s.metrics,
		Logger:  s.log.With("component", "api"),
	}
	s.router = router.New(
		router.WithLogger(s.log.With("component", "router")),
		router.WithNotFound(api.NotFound(deps)),
	)
	api.Register(s.router, deps)
	for _, rt := range s.router.Routes() {
		s.log.Debug("route registered", "method", rt.Method.String(), "pattern", rt.Pattern)
	}

	s.srv = server.New(s.router, server.Config{
		MaxConcurrency: cfg.MaxConnections,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	},
		server.WithLogger(s.log.With("component", "server")),
		server.WithMetrics(s.metrics),
	)
	return s, nil
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.StartListener(ln)
}

// StartListener serves on ln in the background.
func (s *Server) StartListener(ln net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		_ = ln.Close()
		return errors.New("server is already running")
	}
	if s.stopped != nil {
		_ = ln.Close()
		return server.ErrServerClosed
	}

	s.ln = ln
	s.stopped = make(chan struct{})
	s.running = true
	s.startTime = time.Now()

	s.log.Info("engine started",
		"addr", ln.Addr().String(),
		"db_root", s.store.Root(),
		"max_connections", s.cfg.MaxConnections,
		"strict_body", s.matcher.Strict(),
	)

	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, server.ErrServerClosed) {
			err = nil
		}
		s.mu.Lock()
		s.running = false
		s.serveErr = err
		s.mu.Unlock()
		close(s.stopped)
	}()
	return nil
}

// Run starts the server and blocks until ctx is cancelled or serving fails.
// On cancellation it shuts down, giving in-flight requests up to the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	select {
	case <-s.stopped:
		return s.err()
	case <-ctx.Done():
	}

	s.log.Info("shutting down", "timeout", s.cfg.ShutdownTimeout)
	stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.Stop(stopCtx)
}

// Stop gracefully shuts the server down. Requests still running when ctx
// expires are cut off and ctx's error is returned.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped == nil {
		return nil
	}

	err := s.srv.Shutdown(ctx)
	<-stopped
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("engine stopped",
		"uptime", s.Uptime().Round(time.Millisecond),
		"cached_projects", s.cache.Len(),
	)
	return s.err()
}

func (s *Server) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

// Running reports whether the server is serving.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Uptime returns the time since Start, or zero if never started.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Config returns the settings the server was built with.
func (s *Server) Config() config.Config { return s.cfg }

// Store returns the project store.
func (s *Server) Store() *store.FileStore { return s.store }

// Cache returns the project config cache.
func (s *Server) Cache() *cache.Cache { return s.cache }

// Router returns the route table.
func (s *Server) Router() *router.Router { return s.router }

// Metrics returns the metric set.
func (s *Server) Metrics() *metrics.Set { return s.metrics }
