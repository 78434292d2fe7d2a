package conn

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/gearmand/pkg/types"
	"github.com/cuemby/gearmand/pkg/wire"
)

func pipeConns(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return server, client
}

func TestSendAndReceiveEcho(t *testing.T) {
	server, client := pipeConns(t)

	c := New(types.ConnID("1"), server)
	received := make(chan *wire.Packet, 1)
	go c.Serve(func(_ *Connection, p *wire.Packet) {
		received <- p
	})
	defer c.Close()

	pkt := &wire.Packet{Magic: wire.Request, Command: wire.EchoReq, Args: [][]byte{[]byte("ping")}}
	buf, err := wire.Encode(pkt)
	require.NoError(t, err)

	_, err = client.Write(buf)
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, wire.EchoReq, got.Command)
		assert.Equal(t, "ping", string(got.Args[0]))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet")
	}
}

func TestConnectionClosesOnEOF(t *testing.T) {
	server, client := pipeConns(t)
	c := New(types.ConnID("1"), server)
	go c.Serve(func(_ *Connection, _ *wire.Packet) {})

	client.Close()

	select {
	case <-c.Done():
		assert.True(t, c.Dead())
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close")
	}
}

func TestFunctionRegistration(t *testing.T) {
	server, _ := pipeConns(t)
	c := New(types.ConnID("1"), server)

	c.AddFunction("reverse", 0)
	c.AddFunction("sum", 5*time.Second)
	assert.ElementsMatch(t, []string{"reverse", "sum"}, c.Functions())

	c.RemoveFunction("sum")
	assert.ElementsMatch(t, []string{"reverse"}, c.Functions())

	c.ResetAbilities()
	assert.Empty(t, c.Functions())
}

func TestSetRoleOnlyTransitionsOnce(t *testing.T) {
	server, _ := pipeConns(t)
	c := New(types.ConnID("1"), server)

	c.SetRole(types.RoleWorker)
	c.SetRole(types.RoleClient)
	assert.Equal(t, types.RoleWorker, c.Role)
}

