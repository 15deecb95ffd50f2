package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/logger"
)

// Options tunes a Server. Zero values fall back to the defaults below.
type Options struct {
	StatusInterval  time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	Sinks           []StatusSink
}

const (
	DefaultStatusInterval  = 5 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Server is the request/response TCP server. It owns the listener, the
// client registry, the worker pool and the status reporter.
type Server struct {
	listener        net.Listener
	transform       Transform
	registry        *Registry
	pool            *WorkerPool
	reporter        *StatusReporter
	shutdownTimeout time.Duration

	log          *slog.Logger
	exiting      atomic.Bool
	shutdownOnce sync.Once
}

// NewServer builds a server around an already bound listener.
func NewServer(listener net.Listener, transform Transform, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	registry := NewRegistry()
	return &Server{
		listener:        listener,
		transform:       transform,
		registry:        registry,
		pool:            NewWorkerPool(),
		reporter:        NewStatusReporter(registry, opts.StatusInterval, opts.Logger, opts.Sinks...),
		shutdownTimeout: opts.ShutdownTimeout,
		log:             opts.Logger,
	}
}

// Registry is the live client registry.
func (s *Server) Registry() *Registry { return s.registry }

// Reporter is the periodic status reporter.
func (s *Server) Reporter() *StatusReporter { return s.reporter }

// Exiting reports whether shutdown has begun.
func (s *Server) Exiting() bool {
	return s.exiting.Load()
}

// Serve starts the status reporter and runs the accept loop. It returns nil
// once Shutdown closes the listener and the accept error otherwise.
func (s *Server) Serve() error {
	if s.exiting.Load() {
		return ErrServerClosed
	}

	s.log.Info("Start awaiting and serving clients", "addr", s.listener.Addr().String())
	s.reporter.Start()

	for !s.exiting.Load() {
		nc, err := s.listener.Accept()
		if err != nil {
			if s.exiting.Load() {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		c := NewConn(nc, s.log)
		s.registry.Register(c)
		c.log.Info("Register new client", "desc", c.String(), "clients", s.registry.Len())

		if !s.pool.Go(func(ctx context.Context) { s.serveConn(ctx, c) }) {
			// Pool already stopped: shutdown raced the accept.
			s.registry.Unregister(c)
			_ = c.Close()
			return nil
		}
	}
	return nil
}

// Shutdown tears the server down in order: exit flag, status reporter,
// client handles, listener, worker pool. Workers get the shutdown timeout to
// finish before their sockets are force closed. Only the first call has any
// effect.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.log.Info("Start shutdown")
		s.exiting.Store(true)

		s.reporter.Stop()

		conns := s.registry.Conns()
		s.log.Info("Gently close clients", "clients", len(conns))
		for _, c := range conns {
			c.MarkDead()
		}

		s.log.Info("Close socket server")
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Warn("Error closing listener", "error", err)
		}

		s.log.Info("Gently shutdown clients processing", "timeout", s.shutdownTimeout)
		s.pool.Shutdown()
		if !s.pool.AwaitTermination(s.shutdownTimeout) {
			s.log.Warn("Shutdown clients processing forcibly", "remaining", s.registry.Len())
		}
		s.pool.ShutdownNow()

		s.log.Info("Shutdown server successfully")
	})
}
