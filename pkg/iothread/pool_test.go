package iothread

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/gearmand/pkg/conn"
	"github.com/cuemby/gearmand/pkg/types"
	"github.com/cuemby/gearmand/pkg/wire"
)

func TestPoolAssignRoundRobin(t *testing.T) {
	handled := make(chan *wire.Packet, 4)
	pool := NewPool(2, func(_ *conn.Connection, p *wire.Packet) {
		handled <- p
	})
	pool.Start()

	servers := make([]net.Conn, 0, 4)
	clients := make([]net.Conn, 0, 4)
	for i := 0; i < 4; i++ {
		s, c := net.Pipe()
		servers = append(servers, s)
		clients = append(clients, c)
		pool.Assign(conn.New(types.ConnID(string(rune('a'+i))), s))
	}
	t.Cleanup(func() {
		for _, c := range clients {
			c.Close()
		}
	})

	buf, err := wire.Encode(&wire.Packet{Magic: wire.Request, Command: wire.EchoReq, Args: [][]byte{[]byte("x")}})
	require.NoError(t, err)

	for _, c := range clients {
		_, err := c.Write(buf)
		require.NoError(t, err)
	}

	for i := 0; i < 4; i++ {
		select {
		case <-handled:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for handled packet")
		}
	}
}

func TestThreadLabel(t *testing.T) {
	assert.Equal(t, "0", threadLabel(0))
	assert.Equal(t, "3", threadLabel(3))
}
