package process

import (
	"sync"

	"github.com/cuemby/gearmand/pkg/conn"
	"github.com/cuemby/gearmand/pkg/types"
	"github.com/cuemby/gearmand/pkg/wire"
)

// ConnTable maps live connection ids to their *conn.Connection so the
// processing stage can deliver packets to a job's subscribers or worker
// without the registry itself holding connection references (spec.md §3
// "Ownership": the registry tracks only connection ids, valid while the
// connection remains in this table).
type ConnTable struct {
	mu   sync.RWMutex
	byID map[types.ConnID]*conn.Connection
}

// NewConnTable creates an empty table.
func NewConnTable() *ConnTable {
	return &ConnTable{byID: make(map[types.ConnID]*conn.Connection)}
}

// Register adds a newly accepted connection.
func (t *ConnTable) Register(c *conn.Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[c.ID] = c
}

// Unregister removes a torn-down connection, the Go analogue of the
// original's deferred "proc-removed" scrub pass.
func (t *ConnTable) Unregister(id types.ConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

// Lookup returns the live connection for id, if any.
func (t *ConnTable) Lookup(id types.ConnID) (*conn.Connection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.byID[id]
	return c, ok
}

// Send delivers pkt to id's connection if it is still live; it is a
// silent no-op otherwise (the connection may have torn down between the
// registry releasing its lock and this call, which is expected under
// spec.md §3's ownership model).
func (t *ConnTable) Send(id types.ConnID, pkt *wire.Packet) {
	t.mu.RLock()
	c, ok := t.byID[id]
	t.mu.RUnlock()
	if !ok {
		return
	}
	c.Send(pkt)
}

// Count returns the number of registered connections.
func (t *ConnTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// All returns a snapshot of every currently registered connection, used by
// shutdown to close or flush-and-close each live socket.
func (t *ConnTable) All() []*conn.Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*conn.Connection, 0, len(t.byID))
	for _, c := range t.byID {
		out = append(out, c)
	}
	return out
}
