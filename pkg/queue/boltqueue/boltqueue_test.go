package boltqueue

import (
	"context"
	"testing"

	"github.com/cuemby/gearmand/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDoneRoundTrip(t *testing.T) {
	a, err := Open(t.TempDir())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.Add(ctx, queue.Record{Handle: "H:host:1", Function: "reverse", Unique: "u1", Data: []byte("abc")}))

	var seen []queue.Record
	require.NoError(t, a.Replay(ctx, func(r queue.Record) error {
		seen = append(seen, r)
		return nil
	}))
	require.Len(t, seen, 1)
	assert.Equal(t, "reverse", seen[0].Function)

	require.NoError(t, a.Done(ctx, "H:host:1"))
	assert.ErrorIs(t, a.Done(ctx, "H:host:1"), queue.ErrNotFound)
}

// TestAddDoesNotCollideOnSharedFunctionUnique guards against two distinct
// background jobs sharing a (function, unique) pair overwriting each
// other's persisted record; each must survive under its own handle.
func TestAddDoesNotCollideOnSharedFunctionUnique(t *testing.T) {
	a, err := Open(t.TempDir())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.Add(ctx, queue.Record{Handle: "H:host:1", Function: "reverse", Data: []byte("first")}))
	require.NoError(t, a.Add(ctx, queue.Record{Handle: "H:host:2", Function: "reverse", Data: []byte("second")}))

	var seen []string
	require.NoError(t, a.Replay(ctx, func(r queue.Record) error {
		seen = append(seen, string(r.Data))
		return nil
	}))
	assert.ElementsMatch(t, []string{"first", "second"}, seen)
}

func TestReplaySurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, a.Add(ctx, queue.Record{Function: "sum", Unique: "x", Data: []byte("1,2,3")}))
	require.NoError(t, a.Close())

	b, err := Open(dir)
	require.NoError(t, err)
	defer b.Close()

	var count int
	require.NoError(t, b.Replay(ctx, func(queue.Record) error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count)
}
