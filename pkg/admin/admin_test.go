package admin

import (
	"testing"

	"github.com/cuemby/gearmand/pkg/queue/memory"
	"github.com/cuemby/gearmand/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher() *Dispatcher {
	reg := registry.New(registry.Options{Hostname: "test"}, memory.New())
	return &Dispatcher{Reg: reg, Version: "gearmand-test", Pid: 4242}
}

func TestStatusEmptyEndsWithDot(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, ".\n", d.Handle("status"))
}

func TestStatusListsCreatedFunction(t *testing.T) {
	d := newDispatcher()
	d.Reg.CreateFunction("reverse")
	assert.Equal(t, "reverse\t0\t0\t0\n.\n", d.Handle("status"))
}

func TestVersionAndGetpid(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, "gearmand-test\n", d.Handle("version"))
	assert.Equal(t, "OK 4242\n", d.Handle("getpid"))
}

func TestMaxqueueRequiresTwoArgs(t *testing.T) {
	d := newDispatcher()
	assert.Contains(t, d.Handle("maxqueue reverse"), "ERR")
	assert.Equal(t, "OK\n", d.Handle("maxqueue reverse 10"))
}

func TestShutdownInvokesCallback(t *testing.T) {
	d := newDispatcher()
	var graceful bool
	var called bool
	d.Shutdown = func(g bool) { called = true; graceful = g }

	assert.Equal(t, "OK\n", d.Handle("shutdown graceful"))
	require.True(t, called)
	assert.True(t, graceful)
}

func TestUnknownCommand(t *testing.T) {
	d := newDispatcher()
	assert.Contains(t, d.Handle("bogus"), "ERR unknown_command")
}
