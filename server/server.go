// Package server binds the TCP listener and runs the admission/accept loop
// (spec.md §4.4), handing each accepted connection to a worker once an
// admission token is free. It replaces the original C proxy's
// thread-per-client-with-no-reaping main loop (proxyserver.c's accept/
// pthread_create loop, see spec.md §9) with a goroutine per connection
// bounded by the admission semaphore, and follows the ancestor codebase's
// server/server.go shape of a struct wrapping a net.Listener with an
// explicit New/Listen/Run lifecycle; Run returns once its context is
// canceled and in-flight workers have finished.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/omalloc/waystation/internal/admission"
	"github.com/omalloc/waystation/internal/cache"
	"github.com/omalloc/waystation/internal/config"
	"github.com/omalloc/waystation/internal/metrics"
	"github.com/omalloc/waystation/internal/upstream"
	"github.com/omalloc/waystation/internal/worker"
	"github.com/omalloc/waystation/internal/xlog"
)

// Server owns the proxy's listening socket, admission gate, and worker
// pool wiring. It does not itself hold per-connection state.
type Server struct {
	cfg     *config.Config
	log     xlog.Logger
	metrics *metrics.Metrics
	tokens  *admission.Tokens
	worker  *worker.Worker

	listener   net.Listener
	metricsSrv *http.Server
}

// New builds a Server ready to Run. The cache and fetcher are constructed
// here so Run has everything it needs in one value.
func New(cfg *config.Config, log xlog.Logger) *Server {
	m := metrics.New()
	c := cache.New(cfg.CacheCapacityBytes, cfg.CacheEntryOverhead, log, m)
	f := upstream.New(cfg.DialTimeout, cfg.MaxBytes)

	return &Server{
		cfg:     cfg,
		log:     log,
		metrics: m,
		tokens:  admission.New(cfg.MaxClients),
		worker: &worker.Worker{
			MaxBytes: cfg.MaxBytes,
			Cache:    c,
			Fetcher:  f,
			Log:      log,
			Metrics:  m,
		},
	}
}

// Listen binds the listening socket (backlog ≥ MAX_CLIENTS is provided by
// the platform's net package default listen backlog; address reuse is
// enabled by net's default TCP listener socket options). It is split out
// from Run so callers such as tests can learn the bound address — useful
// when Port is 0 — before the accept loop starts.
func (s *Server) Listen(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort("", strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Run drives the admission/accept loop, blocking until ctx is canceled or
// a fatal listen error occurs (spec.md §6's exit-code contract is enforced
// by the caller inspecting this error). It calls Listen itself if the
// caller hasn't already.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(ctx); err != nil {
			return err
		}
	}
	ln := s.listener

	if s.cfg.MetricsAddr != "" {
		s.metricsSrv = &http.Server{Addr: s.cfg.MetricsAddr, Handler: s.metrics.Handler()}
		go func() {
			if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Warnf("metrics server stopped: %s", err)
			}
		}()
	}

	s.log.Infof("waystation listening on %s (max_clients=%d max_bytes=%d cache_capacity=%d)",
		ln.Addr(), s.cfg.MaxClients, s.cfg.MaxBytes, s.cfg.CacheCapacityBytes)

	var wg sync.WaitGroup
	go func() {
		<-ctx.Done()
		_ = ln.Close()
		if s.metricsSrv != nil {
			_ = s.metricsSrv.Close()
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			// Accept transient failure: log and continue (spec.md §4.4,
			// §7) rather than tearing down the whole server.
			s.log.Warnf("accept failed: %s", err)
			continue
		}

		// Admission MUST precede any per-request allocation beyond the
		// accepted socket (spec.md §4.4's admission ordering rule).
		if err := s.tokens.Acquire(ctx); err != nil {
			_ = conn.Close()
			break
		}

		s.metrics.WorkerStarted()
		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer s.metrics.WorkerFinished()
			defer s.tokens.Release()
			s.worker.Serve(ctx, c)
		}(conn)
	}

	wg.Wait()
	return nil
}

// Addr reports the bound listener address; nil until Listen (or Run) has
// bound the socket (used by tests that bind an ephemeral port).
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
