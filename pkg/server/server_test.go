package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/cuemby/gearmand/pkg/queue/memory"
	"github.com/cuemby/gearmand/pkg/wire"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := New(Config{
		ListenAddr:  "127.0.0.1:0",
		AdminAddr:   "127.0.0.1:0",
		Threads:     2,
		Hostname:    "test",
		JobRetries:  1,
		Version:     "gearmand-test",
	}, memory.New(), nil)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func TestServerAcceptsJobConnection(t *testing.T) {
	s := newTestServer(t)

	c, err := net.Dial("tcp", s.jobListener.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	buf, err := wire.Encode(&wire.Packet{Magic: wire.Request, Command: wire.EchoReq, Args: [][]byte{[]byte("hi")}})
	require.NoError(t, err)
	_, err = c.Write(buf)
	require.NoError(t, err)

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var dec wire.Decoder
	rbuf := make([]byte, 256)
	for {
		n, err := c.Read(rbuf)
		require.NoError(t, err)
		dec.Feed(rbuf[:n])
		pkt, ok, derr := dec.Next()
		require.NoError(t, derr)
		if ok {
			require.Equal(t, wire.EchoRes, pkt.Command)
			require.Equal(t, "hi", string(pkt.Arg(0)))
			return
		}
	}
}

func TestServerAdminStatus(t *testing.T) {
	s := newTestServer(t)

	c, err := net.Dial("tcp", s.adminListener.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write([]byte("version\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(c).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "gearmand-test\n", line)
}
