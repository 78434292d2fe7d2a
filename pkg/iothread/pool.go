package iothread

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cuemby/gearmand/pkg/conn"
	"github.com/cuemby/gearmand/pkg/log"
	"github.com/cuemby/gearmand/pkg/metrics"
	"github.com/cuemby/gearmand/pkg/wire"
)

// WakeupKind enumerates the tokens an I/O thread's control channel can
// carry (spec.md §4.3's self-pipe wakeup enum, reproduced as a Go channel
// of values instead of a byte written to a real pipe).
type WakeupKind int

const (
	Run WakeupKind = iota
	NewConnection
	Shutdown
	ShutdownGraceful
	Pause
)

// Pool is the I/O thread pool: N threads, each owning a slice of
// connections, assigned round-robin by the listener (spec.md §4.3).
type Pool struct {
	threads []*Thread
	next    atomic.Uint64
}

// NewPool creates n threads, each invoking handler for every packet
// decoded on one of its connections.
func NewPool(n int, handler conn.Handler) *Pool {
	if n <= 0 {
		n = 4
	}
	p := &Pool{threads: make([]*Thread, n)}
	for i := 0; i < n; i++ {
		p.threads[i] = newThread(i, handler)
	}
	return p
}

// Start launches every thread's control loop.
func (p *Pool) Start() {
	for _, t := range p.threads {
		t.start()
	}
}

// Assign hands a newly accepted connection to the next thread in
// round-robin order.
func (p *Pool) Assign(c *conn.Connection) {
	idx := p.next.Add(1) % uint64(len(p.threads))
	p.threads[idx].add(c)
}

// Broadcast sends a wakeup token to every thread, used for shutdown.
func (p *Pool) Broadcast(kind WakeupKind) {
	for _, t := range p.threads {
		t.wakeup <- kind
	}
}

// Wait blocks until every thread has finished serving its connections.
func (p *Pool) Wait() {
	for _, t := range p.threads {
		t.wg.Wait()
	}
}

// Thread owns a slice of connections and a control channel carrying
// wakeup tokens, replacing the C original's self-pipe with a plain Go
// channel (spec.md §9).
type Thread struct {
	id      int
	handler conn.Handler
	wakeup  chan WakeupKind

	mu          sync.Mutex
	connections map[interface{}]*conn.Connection

	wg sync.WaitGroup
}

func newThread(id int, handler conn.Handler) *Thread {
	return &Thread{
		id:          id,
		handler:     handler,
		wakeup:      make(chan WakeupKind, 16),
		connections: make(map[interface{}]*conn.Connection),
	}
}

func (t *Thread) start() {
	go t.run()
}

func (t *Thread) run() {
	logger := log.WithComponent("iothread")
	for kind := range t.wakeup {
		switch kind {
		case Shutdown:
			logger.Info().Int("thread", t.id).Msg("immediate shutdown")
			return
		case ShutdownGraceful:
			logger.Info().Int("thread", t.id).Msg("graceful shutdown")
			return
		case Pause, NewConnection, Run:
			// Connections are served on their own goroutines (see add);
			// this loop only needs to observe lifecycle tokens.
		}
	}
}

// add registers a new connection with the thread and starts serving it.
func (t *Thread) add(c *conn.Connection) {
	t.mu.Lock()
	t.connections[c.ID] = c
	count := len(t.connections)
	t.mu.Unlock()

	metrics.ThreadConnections.WithLabelValues(threadLabel(t.id)).Set(float64(count))

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		c.Serve(func(conn *conn.Connection, p *wire.Packet) {
			t.handler(conn, p)
		})
		t.remove(c)
	}()

	select {
	case t.wakeup <- NewConnection:
	default:
	}
}

func (t *Thread) remove(c *conn.Connection) {
	t.mu.Lock()
	delete(t.connections, c.ID)
	count := len(t.connections)
	t.mu.Unlock()

	metrics.ThreadConnections.WithLabelValues(threadLabel(t.id)).Set(float64(count))
}

func threadLabel(id int) string {
	return strconv.Itoa(id)
}
