package process

import (
	"net"
	"testing"

	"github.com/cuemby/gearmand/pkg/conn"
	"github.com/cuemby/gearmand/pkg/types"
	"github.com/cuemby/gearmand/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLookupUnregister(t *testing.T) {
	table := NewConnTable()
	_, server := net.Pipe()
	defer server.Close()
	c := conn.New(types.ConnID("x1"), server)

	table.Register(c)
	got, ok := table.Lookup("x1")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, table.Count())

	table.Unregister("x1")
	_, ok = table.Lookup("x1")
	assert.False(t, ok)
	assert.Equal(t, 0, table.Count())
}

func TestSendToMissingConnIsNoOp(t *testing.T) {
	table := NewConnTable()
	assert.NotPanics(t, func() {
		table.Send("nobody", &wire.Packet{Magic: wire.Response, Command: wire.Noop})
	})
}
