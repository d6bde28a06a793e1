// Package server accepts TCP connections and answers one request per
// connection using an httpwire.Handler.
//
// A fixed pool of MaxConcurrency workers handles connections. Accepted
// connections wait in a bounded queue for a free worker; when the queue is
// full the acceptor blocks, so excess clients wait in the listen backlog
// instead of being dropped.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/mockapi/pkg/httpwire"
	"github.com/getmockd/mockapi/pkg/logging"
	"github.com/getmockd/mockapi/pkg/metrics"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown or
// Close.
var ErrServerClosed = errors.New("server closed")

// Defaults applied by New.
const (
	DefaultMaxConcurrency = 1000
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
)

// Config holds the server settings.
type Config struct {
	// MaxConcurrency is the number of workers and the capacity of the
	// pending-connection queue.
	MaxConcurrency int
	// ReadTimeout bounds reading the request, from the moment a worker picks
	// the connection up.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing the response.
	WriteTimeout time.Duration
	// MaxBodyBytes caps the request body; larger requests are dropped.
	MaxBodyBytes int64
}

// Server is a bounded-concurrency, one-request-per-connection server.
type Server struct {
	handler httpwire.Handler
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Set

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	drained  chan struct{} // closed once Serve's workers have exited

	closed atomic.Bool
	conns  sync.Map // net.Conn -> struct{}, every accepted and unclosed connection
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics records connection and request metrics in set.
func WithMetrics(set *metrics.Set) Option {
	return func(s *Server) { s.metrics = set }
}

// New creates a server dispatching to h. Zero values in cfg take defaults.
func New(h httpwire.Handler, cfg Config, opts ...Option) *Server {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = httpwire.DefaultMaxBodyBytes
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		handler: h,
		cfg:     cfg,
		log:     logging.Nop(),
		baseCtx: ctx,
		cancel:  cancel,
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the listener address, or nil before Serve is called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(addr string) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown or Close is called, or ln
// fails. It always returns a non-nil error; after a shutdown the error is
// ErrServerClosed. Serve may be called once per Server.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("server: Serve called twice")
	}
	s.listener = ln
	s.mu.Unlock()
	defer close(s.drained)

	s.log.Info("listening", "addr", ln.Addr().String(), "workers", s.cfg.MaxConcurrency)

	jobs := make(chan net.Conn, s.cfg.MaxConcurrency)
	var g errgroup.Group
	for range s.cfg.MaxConcurrency {
		g.Go(func() error {
			for conn := range jobs {
				s.handle(conn)
			}
			return nil
		})
	}

	err := s.accept(ln, jobs)
	close(jobs)
	_ = g.Wait()
	return err
}

func (s *Server) accept(ln net.Listener, jobs chan<- net.Conn) error {
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}
			// EMFILE, ECONNABORTED and timeouts all clear up on their own.
			backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
			s.log.Warn("accept error, retrying", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.conns.Store(conn, struct{}{})
		if s.metrics != nil {
			_ = s.metrics.ConnectionsTotal.Inc()
			_ = s.metrics.ConnectionsQueued.Inc()
		}
		jobs <- conn
	}
}

// Shutdown stops accepting connections and waits for queued and in-flight
// connections to finish. If ctx expires first, remaining connections are
// closed, pending delays are cancelled, and ctx's error is returned once the
// workers have exited.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	first := s.closed.CompareAndSwap(false, true)
	ln := s.listener
	s.mu.Unlock()

	if ln == nil {
		s.cancel()
		return nil
	}
	if first {
		_ = ln.Close()
	}

	select {
	case <-s.drained:
		s.cancel()
		return nil
	case <-ctx.Done():
	}

	s.cancel()
	s.conns.Range(func(key, _ any) bool {
		_ = key.(net.Conn).Close()
		return true
	})
	<-s.drained
	return ctx.Err()
}

// Close stops the server immediately, closing every open connection.
func (s *Server) Close() error {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// handle serves exactly one request on conn and closes it.
func (s *Server) handle(conn net.Conn) {
	log := s.log.With("conn", uuid.NewString(), "remote", conn.RemoteAddr().String())
	defer func() {
		_ = conn.Close()
		s.conns.Delete(conn)
		if s.metrics != nil {
			_ = s.metrics.ConnectionsActive.Dec()
		}
	}()
	if s.metrics != nil {
		_ = s.metrics.ConnectionsQueued.Dec()
		_ = s.metrics.ConnectionsActive.Inc()
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	req, err := httpwire.ReadRequest(bufio.NewReader(conn), s.cfg.MaxBodyBytes)
	if err != nil {
		s.transportError(log, err)
		return
	}

	start := time.Now()
	resp := s.dispatch(log, req)

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if _, err := resp.WriteTo(conn); err != nil {
		s.transportError(log, err)
		return
	}
	log.Debug("request served",
		"method", req.Method.String(),
		"target", req.Path,
		"status", resp.Status,
		"duration", time.Since(start),
	)
}

// dispatch calls the handler, turning a panic or a nil response into a 500.
func (s *Server) dispatch(log *slog.Logger, req *httpwire.Request) (resp *httpwire.Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic", "panic", r, "method", req.Method.String(), "target", req.Path)
			resp = httpwire.Error(500, fmt.Sprintf("internal server error: %v", r))
		}
	}()
	resp = s.handler.Handle(s.baseCtx, req)
	if resp == nil {
		log.Error("handler returned no response", "method", req.Method.String(), "target", req.Path)
		resp = httpwire.Error(500, "internal server error: empty response")
	}
	return resp
}

// transportError logs a connection-fatal error. No response is sent.
func (s *Server) transportError(log *slog.Logger, err error) {
	reason := "io"
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed):
		// Client went away before sending a full request.
		log.Debug("connection closed by client", "error", err)
		reason = "closed"
	case errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()):
		reason = "timeout"
	case errors.Is(err, httpwire.ErrMalformedRequestLine):
		reason = "malformed"
	case errors.Is(err, httpwire.ErrUnsupportedMethod):
		reason = "method"
	case errors.Is(err, httpwire.ErrBodyTooLarge), errors.Is(err, httpwire.ErrHeaderTooLarge):
		reason = "too_large"
	}
	if reason != "closed" {
		log.Warn("connection dropped", "reason", reason, "error", err)
	}
	if s.metrics != nil {
		metrics.Inc(s.metrics.TransportErrors, reason)
	}
}
