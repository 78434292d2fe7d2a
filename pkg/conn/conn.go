package conn

import (
	"bufio"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/gearmand/pkg/log"
	"github.com/cuemby/gearmand/pkg/types"
	"github.com/cuemby/gearmand/pkg/wire"
)

const (
	// BufSize is the fixed send/recv buffer size (spec.md §4.2).
	BufSize = 8 * 1024

	// DefaultQueueDepth bounds each connection's inbound and outbound
	// packet FIFOs (spec.md §4.2); overflow triggers CloseAfterFlush.
	DefaultQueueDepth = 64
)

// Connection is one TCP socket and its protocol-level state (spec.md §3).
// Reading and writing happen on their own goroutines; Handle (passed to
// Serve) runs on whichever I/O thread owns this connection and must never
// block on network I/O itself.
type Connection struct {
	ID     types.ConnID
	netConn net.Conn

	mu                sync.Mutex
	Role              types.Role
	ClientID          string
	CanDo             map[string]time.Duration // function -> timeout (0 = none)
	Sleeping          bool
	ExceptionsEnabled bool
	NoopSent          bool

	dead            atomic.Bool
	closeAfterFlush atomic.Bool

	out chan *wire.Packet

	closeOnce sync.Once
	closedCh  chan struct{}
}

// New wraps an accepted socket. The caller must call Serve to start the
// read/write pumps.
func New(id types.ConnID, nc net.Conn) *Connection {
	return &Connection{
		ID:       id,
		netConn:  nc,
		Role:     types.RoleUnknown,
		ClientID: "-",
		CanDo:    make(map[string]time.Duration),
		out:      make(chan *wire.Packet, DefaultQueueDepth),
		closedCh: make(chan struct{}),
	}
}

// Handler is called once per decoded packet, on the connection's I/O
// thread. It must not block.
type Handler func(*Connection, *wire.Packet)

// Serve starts the read and write pumps and blocks until the connection
// is closed. handler is invoked from the read pump's goroutine for every
// packet decoded; a decode error or EOF ends the connection.
func (c *Connection) Serve(handler Handler) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		c.writePump()
	}()
	go func() {
		defer wg.Done()
		c.readPump(handler)
	}()

	wg.Wait()
	close(c.closedCh)
}

func (c *Connection) readPump(handler Handler) {
	logger := log.WithComponent("conn")
	r := bufio.NewReaderSize(c.netConn, BufSize)
	var dec wire.Decoder
	chunk := make([]byte, BufSize)

	for {
		if c.dead.Load() {
			return
		}

		n, err := r.Read(chunk)
		if n > 0 {
			dec.Feed(chunk[:n])
			for {
				pkt, ok, derr := dec.Next()
				if derr != nil {
					logger.Debug().Str("conn", string(c.ID)).Err(derr).Msg("decode error, closing connection")
					c.Close()
					return
				}
				if !ok {
					break
				}
				handler(c, pkt)
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Debug().Str("conn", string(c.ID)).Err(err).Msg("read error")
			}
			c.Close()
			return
		}
	}
}

func (c *Connection) writePump() {
	w := bufio.NewWriterSize(c.netConn, BufSize)
	for pkt := range c.out {
		buf, err := wire.Encode(pkt)
		if err != nil {
			continue
		}
		if _, err := w.Write(buf); err != nil {
			c.markDead()
			continue
		}
		// Flush eagerly when no further packets are immediately queued,
		// coalescing bursts the way the C FSM's send buffer does.
		if len(c.out) == 0 {
			if err := w.Flush(); err != nil {
				c.markDead()
			}
		}
		if c.closeAfterFlush.Load() && len(c.out) == 0 {
			c.markDead()
			return
		}
	}
	w.Flush()
}

// Send enqueues an outbound packet. If the outbound queue is full the
// connection is marked CloseAfterFlush (spec.md §4.2): no further packets
// are accepted, but already-queued ones are still flushed before close.
func (c *Connection) Send(pkt *wire.Packet) {
	if c.dead.Load() || c.closeAfterFlush.Load() {
		return
	}
	select {
	case c.out <- pkt:
	default:
		c.closeAfterFlush.Store(true)
	}
}

// CloseAfterFlush stops accepting new outbound packets but lets queued
// ones drain before the socket closes.
func (c *Connection) CloseAfterFlush() {
	c.closeAfterFlush.Store(true)
}

func (c *Connection) markDead() {
	if c.dead.CompareAndSwap(false, true) {
		close(c.out)
		c.netConn.Close()
	}
}

// Close tears down the connection immediately.
func (c *Connection) Close() {
	c.markDead()
}

// Dead reports whether the connection's socket has been torn down. A dead
// connection must still be drained by the processing stage (its job/
// subscription references scrubbed) before it is dropped.
func (c *Connection) Dead() bool {
	return c.dead.Load()
}

// Done returns a channel closed once both pumps have exited.
func (c *Connection) Done() <-chan struct{} {
	return c.closedCh
}

// SetRole transitions Role from Unknown to client/worker on first use.
func (c *Connection) SetRole(r types.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Role == types.RoleUnknown {
		c.Role = r
	}
}

// AddFunction records a CAN_DO/CAN_DO_TIMEOUT registration.
func (c *Connection) AddFunction(name string, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CanDo[name] = timeout
}

// RemoveFunction handles CANT_DO for a single function.
func (c *Connection) RemoveFunction(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.CanDo, name)
}

// ResetAbilities handles RESET_ABILITIES, clearing all CAN_DO registrations.
func (c *Connection) ResetAbilities() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CanDo = make(map[string]time.Duration)
}

// Functions returns a snapshot of the connection's registered functions,
// in map iteration order (not CAN_DO registration order).
func (c *Connection) Functions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.CanDo))
	for f := range c.CanDo {
		out = append(out, f)
	}
	return out
}

// SetSleeping records PRE_SLEEP state for admin diagnostics; the registry
// is the source of truth for dispatch decisions.
func (c *Connection) SetSleeping(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sleeping = v
}

// SetNoopSent records whether a NOOP wakeup is outstanding, preventing
// duplicate wakeups (spec.md §3 invariant 7).
func (c *Connection) SetNoopSent(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NoopSent = v
}

// NoopIsSent reports whether a NOOP wakeup is already outstanding for
// this connection's current sleep.
func (c *Connection) NoopIsSent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.NoopSent
}

// SetExceptionsEnabled records OPTION_REQ "exceptions" negotiation.
func (c *Connection) SetExceptionsEnabled(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ExceptionsEnabled = v
}

// ExceptionsOn reports whether this connection negotiated exceptions.
func (c *Connection) ExceptionsOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ExceptionsEnabled
}

// SetClientID implements SET_CLIENT_ID.
func (c *Connection) SetClientID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ClientID = id
}

// RemoteAddr returns the peer address for admin `workers` output.
func (c *Connection) RemoteAddr() string {
	if c.netConn == nil {
		return ""
	}
	return c.netConn.RemoteAddr().String()
}
