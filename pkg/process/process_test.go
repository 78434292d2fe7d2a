package process

import (
	"net"
	"testing"
	"time"

	"github.com/cuemby/gearmand/pkg/conn"
	"github.com/cuemby/gearmand/pkg/events"
	"github.com/cuemby/gearmand/pkg/queue/memory"
	"github.com/cuemby/gearmand/pkg/reduce"
	"github.com/cuemby/gearmand/pkg/registry"
	"github.com/cuemby/gearmand/pkg/types"
	"github.com/cuemby/gearmand/pkg/wire"
	"github.com/stretchr/testify/require"
)

// harness wires a Processor over a real registry/aggregator/conn table and
// exposes raw net.Pipe client/server sides so packets can be read back.
type harness struct {
	p      *Processor
	client net.Conn
	server *conn.Connection
	done   chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := registry.New(registry.Options{Hostname: "test", JobRetries: 1}, memory.New())
	agg := reduce.New(reg)
	conns := NewConnTable()
	proc := New(reg, agg, conns, nil)

	client, serverSide := net.Pipe()
	sc := conn.New(types.ConnID("c1"), serverSide)
	conns.Register(sc)

	h := &harness{p: proc, client: client, server: sc, done: make(chan struct{})}
	go func() {
		sc.Serve(proc.Handle)
		close(h.done)
	}()
	return h
}

func (h *harness) sendRaw(t *testing.T, pkt *wire.Packet) {
	t.Helper()
	buf, err := wire.Encode(pkt)
	require.NoError(t, err)
	_, err = h.client.Write(buf)
	require.NoError(t, err)
}

func (h *harness) readPacket(t *testing.T) *wire.Packet {
	t.Helper()
	h.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var dec wire.Decoder
	buf := make([]byte, 4096)
	for {
		n, err := h.client.Read(buf)
		require.NoError(t, err)
		dec.Feed(buf[:n])
		pkt, ok, err := dec.Next()
		require.NoError(t, err)
		if ok {
			return pkt
		}
	}
}

func TestSubmitJobRepliesJobCreated(t *testing.T) {
	h := newHarness(t)
	defer h.client.Close()

	h.sendRaw(t, &wire.Packet{Magic: wire.Request, Command: wire.SubmitJob, Args: [][]byte{
		[]byte("reverse"), []byte(""), []byte("hello"),
	}})

	reply := h.readPacket(t)
	require.Equal(t, wire.JobCreated, reply.Command)
	require.NotEmpty(t, reply.Arg(0))
}

func TestGrabJobAfterSubmitReturnsJob(t *testing.T) {
	h := newHarness(t)
	defer h.client.Close()

	h.sendRaw(t, &wire.Packet{Magic: wire.Request, Command: wire.SubmitJob, Args: [][]byte{
		[]byte("reverse"), []byte(""), []byte("hello"),
	}})
	created := h.readPacket(t)
	require.Equal(t, wire.JobCreated, created.Command)

	h.sendRaw(t, &wire.Packet{Magic: wire.Request, Command: wire.CanDo, Args: [][]byte{[]byte("reverse")}})
	h.sendRaw(t, &wire.Packet{Magic: wire.Request, Command: wire.GrabJob})

	assigned := h.readPacket(t)
	require.Equal(t, wire.JobAssign, assigned.Command)
	require.Equal(t, "reverse", string(assigned.Arg(1)))
	require.Equal(t, "hello", string(assigned.Arg(2)))
}

func TestGrabJobWithNoWorkReturnsNoJob(t *testing.T) {
	h := newHarness(t)
	defer h.client.Close()

	h.sendRaw(t, &wire.Packet{Magic: wire.Request, Command: wire.CanDo, Args: [][]byte{[]byte("reverse")}})
	h.sendRaw(t, &wire.Packet{Magic: wire.Request, Command: wire.GrabJob})

	reply := h.readPacket(t)
	require.Equal(t, wire.NoJob, reply.Command)
}

func TestEchoRoundTrip(t *testing.T) {
	h := newHarness(t)
	defer h.client.Close()

	h.sendRaw(t, &wire.Packet{Magic: wire.Request, Command: wire.EchoReq, Args: [][]byte{[]byte("ping")}})
	reply := h.readPacket(t)
	require.Equal(t, wire.EchoRes, reply.Command)
	require.Equal(t, "ping", string(reply.Arg(0)))
}

func TestOptionReqExceptionsEnablesFlag(t *testing.T) {
	h := newHarness(t)
	defer h.client.Close()

	h.sendRaw(t, &wire.Packet{Magic: wire.Request, Command: wire.OptionReq, Args: [][]byte{[]byte("exceptions")}})
	reply := h.readPacket(t)
	require.Equal(t, wire.OptionRes, reply.Command)
	require.True(t, h.server.ExceptionsOn())
}

func TestOptionReqUnknownRepliesError(t *testing.T) {
	h := newHarness(t)
	defer h.client.Close()

	h.sendRaw(t, &wire.Packet{Magic: wire.Request, Command: wire.OptionReq, Args: [][]byte{[]byte("bogus")}})
	reply := h.readPacket(t)
	require.Equal(t, wire.Error, reply.Command)
}

func TestEventsPublishedOnJobLifecycle(t *testing.T) {
	reg := registry.New(registry.Options{Hostname: "test"}, memory.New())
	agg := reduce.New(reg)
	conns := NewConnTable()
	bus := events.NewBus()
	bus.Start()
	defer bus.Stop()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	proc := New(reg, agg, conns, bus)

	client, serverSide := net.Pipe()
	defer client.Close()
	sc := conn.New(types.ConnID("c2"), serverSide)
	conns.Register(sc)
	go sc.Serve(proc.Handle)

	buf, _ := wire.Encode(&wire.Packet{Magic: wire.Request, Command: wire.SubmitJob, Args: [][]byte{
		[]byte("sum"), []byte(""), []byte("1,2"),
	}})
	_, err := client.Write(buf)
	require.NoError(t, err)

	select {
	case evt := <-sub:
		require.Equal(t, events.JobCreated, evt.Type)
		require.Equal(t, "sum", evt.Function)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job.created event")
	}
}
