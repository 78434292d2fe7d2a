// Package server wires gearmand's subsystems into one process: the
// registry, the persistent queue adapter, the I/O thread pool, the
// listeners, the admin dispatcher, and the metrics/health endpoint. One
// struct owns every subsystem directly as a field, in place of the C
// Gearmand() singleton.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/cuemby/gearmand/pkg/admin"
	"github.com/cuemby/gearmand/pkg/conn"
	"github.com/cuemby/gearmand/pkg/events"
	"github.com/cuemby/gearmand/pkg/iothread"
	"github.com/cuemby/gearmand/pkg/log"
	"github.com/cuemby/gearmand/pkg/metrics"
	"github.com/cuemby/gearmand/pkg/process"
	"github.com/cuemby/gearmand/pkg/queue"
	"github.com/cuemby/gearmand/pkg/reduce"
	"github.com/cuemby/gearmand/pkg/registry"
	"github.com/cuemby/gearmand/pkg/types"
	"github.com/cuemby/gearmand/pkg/wire"
)

// Config holds every knob cmd/gearmand's flags populate.
type Config struct {
	ListenAddr  string // job protocol (spec.md §4.1)
	AdminAddr   string // text admin protocol (spec.md §4.8); empty disables it
	MetricsAddr string // promhttp + /healthz; empty disables it

	Threads      int
	Hostname     string
	JobRetries   int
	WorkerWakeup int
	RoundRobin   bool

	Version string
}

// Server owns every long-lived subsystem for one gearmand process.
type Server struct {
	cfg Config

	reg   *registry.Registry
	q     queue.Adapter
	agg   *reduce.Aggregator
	conns *process.ConnTable
	proc  *process.Processor
	bus   *events.Bus
	pool  *iothread.Pool

	jobListener   net.Listener
	adminListener net.Listener
	metricsSrv    *http.Server

	dispatcher *admin.Dispatcher
	logWriter  *log.RotatingFileWriter
}

// New constructs a Server over an already-opened queue adapter. q may be
// nil, matching registry.New's "no persistence" mode.
func New(cfg Config, q queue.Adapter, bus *events.Bus) *Server {
	reg := registry.New(registry.Options{
		Hostname:     cfg.Hostname,
		JobRetries:   cfg.JobRetries,
		WorkerWakeup: cfg.WorkerWakeup,
		RoundRobin:   cfg.RoundRobin,
	}, q)
	agg := reduce.New(reg)
	conns := process.NewConnTable()
	proc := process.New(reg, agg, conns, bus)

	s := &Server{
		cfg:   cfg,
		reg:   reg,
		q:     q,
		agg:   agg,
		conns: conns,
		proc:  proc,
		bus:   bus,
	}
	s.pool = iothread.NewPool(cfg.Threads, s.handleWithTeardown)
	return s
}

// AttachLogWriter records the rotating file writer returned by log.Init so
// Shutdown can close it.
func (s *Server) AttachLogWriter(w *log.RotatingFileWriter) {
	s.logWriter = w
}

// handleWithTeardown is the handler every iothread.Thread invokes for each
// decoded packet; teardown itself happens in awaitTeardown once the
// connection's own Serve goroutine (owned by the thread pool) returns.
func (s *Server) handleWithTeardown(c *conn.Connection, pkt *wire.Packet) {
	s.proc.Handle(c, pkt)
}

// awaitTeardown blocks until c's socket is fully closed, then scrubs its
// registry-side state. iothread.Thread.add is the sole caller of
// c.Serve, so teardown runs on a separate goroutine keyed off c.Done()
// rather than wrapping Serve itself.
func (s *Server) awaitTeardown(c *conn.Connection) {
	<-c.Done()
	s.teardown(c)
	log.WithComponent("server").Debug().Str("conn", string(c.ID)).Msg("connection closed")
}

// Start accepts the job protocol listener, the optional admin listener,
// and the optional metrics/health server, then replays persisted
// background jobs before returning. The job listener's accept loop runs
// on its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	if s.q != nil {
		n, err := s.reg.Replay(ctx)
		if err != nil {
			return fmt.Errorf("replay persisted jobs: %w", err)
		}
		log.WithComponent("server").Info().Int("jobs", n).Msg("replayed persisted background jobs")
	}

	s.dispatcher = &admin.Dispatcher{
		Reg:     s.reg,
		Lookup:  s.conns.Lookup,
		Version: s.cfg.Version,
		Pid:     os.Getpid(),
		Shutdown: func(graceful bool) {
			ctx := context.Background()
			if graceful {
				_ = s.ShutdownGraceful(ctx)
			} else {
				_ = s.Shutdown(ctx)
			}
		},
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.jobListener = ln

	s.pool.Start()
	if s.bus != nil {
		s.bus.Start()
	}

	go s.acceptJobs()

	if s.cfg.AdminAddr != "" {
		aln, err := net.Listen("tcp", s.cfg.AdminAddr)
		if err != nil {
			return fmt.Errorf("listen admin %s: %w", s.cfg.AdminAddr, err)
		}
		s.adminListener = aln
		go s.acceptAdmin()
	}

	if s.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", metrics.LivenessHandler())
		s.metricsSrv = &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithComponent("server").Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	log.WithComponent("server").Info().Str("addr", s.cfg.ListenAddr).Msg("gearmand listening")
	return nil
}

// sniffConn lets acceptJobs peek a connection's first byte to distinguish
// the binary job protocol from the text admin dialect (spec.md §4.8:
// "if the first byte read on a fresh connection is non-zero, the
// connection speaks the text dialect") without losing that byte for
// whichever path actually consumes the stream. spec.md §4.1 further allows
// switching dialect per packet within one connection; this port commits
// to detecting it once per connection instead, a deliberate simplification
// recorded in DESIGN.md.
type sniffConn struct {
	net.Conn
	r *bufio.Reader
}

func (s *sniffConn) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *Server) acceptJobs() {
	logger := log.WithComponent("server")
	for {
		nc, err := s.jobListener.Accept()
		if err != nil {
			return
		}

		br := bufio.NewReader(nc)
		first, err := br.Peek(1)
		if err != nil {
			nc.Close()
			continue
		}
		sc := &sniffConn{Conn: nc, r: br}

		if wire.IsTextAdmin(first[0]) {
			go s.serveAdminConn(sc, s.dispatcher)
			continue
		}

		id := types.ConnID(uuid.NewString())
		c := conn.New(id, sc)
		s.conns.Register(c)
		metrics.ConnectionsTotal.WithLabelValues("unknown").Inc()

		logger.Debug().Str("conn", string(id)).Msg("job connection accepted")
		go s.awaitTeardown(c)
		s.pool.Assign(c)
	}
}

// teardown scrubs a departed connection's registry-side state, per
// spec.md §3's connection-ownership invariant: the registry never holds a
// live *conn.Connection, only the ConnID, so departure is reported back
// through DisconnectClient/DisconnectWorker before the ConnTable entry is
// dropped.
func (s *Server) teardown(c *conn.Connection) {
	s.conns.Unregister(c.ID)
	s.reg.DisconnectClient(c.ID)
	for _, fn := range c.Functions() {
		s.reg.UnregisterWorker(c.ID, fn)
	}
	s.reg.DisconnectWorker(c.ID)
	metrics.ConnectionsTotal.WithLabelValues("unknown").Dec()
}

// acceptAdmin serves the optional dedicated admin listener (--admin-addr),
// for operators who prefer a separate port over per-connection sniffing
// on the job listener.
func (s *Server) acceptAdmin() {
	for {
		nc, err := s.adminListener.Accept()
		if err != nil {
			return
		}
		go s.serveAdminConn(nc, s.dispatcher)
	}
}

func (s *Server) serveAdminConn(nc net.Conn, d *admin.Dispatcher) {
	defer nc.Close()
	scanner := bufio.NewScanner(nc)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if _, err := nc.Write([]byte(d.Handle(line))); err != nil {
			return
		}
		if line == "shutdown" || line == "shutdown graceful" {
			return
		}
	}
}

// Shutdown stops accepting new connections and closes every live one
// immediately, without waiting for queued outbound packets to flush
// (spec.md §4.9: SIGINT/SIGTERM).
func (s *Server) Shutdown(ctx context.Context) error {
	return s.shutdown(ctx, false)
}

// ShutdownGraceful stops accepting new connections but leaves in-flight
// work alone, flushing the queue adapter's buffered state before closing
// (spec.md §4.9: SIGUSR1).
func (s *Server) ShutdownGraceful(ctx context.Context) error {
	return s.shutdown(ctx, true)
}

func (s *Server) shutdown(ctx context.Context, graceful bool) error {
	logger := log.WithComponent("server")
	metrics.SetAlive(false)

	if s.jobListener != nil {
		s.jobListener.Close()
	}
	if s.adminListener != nil {
		s.adminListener.Close()
	}

	kind := iothread.Shutdown
	if graceful {
		kind = iothread.ShutdownGraceful
	}
	s.pool.Broadcast(kind)

	for _, c := range s.conns.All() {
		if graceful {
			c.CloseAfterFlush()
		} else {
			c.Close()
		}
	}

	if s.q != nil {
		if err := s.q.ShutdownSnapshot(ctx); err != nil {
			logger.Warn().Err(err).Msg("queue shutdown snapshot failed")
		}
		if err := s.q.Flush(ctx); err != nil {
			logger.Warn().Err(err).Msg("queue flush failed")
		}
		if err := s.q.Close(); err != nil {
			logger.Warn().Err(err).Msg("queue close failed")
		}
	}

	if s.bus != nil {
		s.bus.Stop()
	}

	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("metrics server shutdown failed")
		}
	}

	if s.logWriter != nil {
		if err := s.logWriter.Close(); err != nil {
			logger.Warn().Err(err).Msg("log file close failed")
		}
	}

	logger.Info().Bool("graceful", graceful).Msg("shutdown complete")
	return nil
}
