package reduce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/gearmand/pkg/queue/memory"
	"github.com/cuemby/gearmand/pkg/registry"
	"github.com/cuemby/gearmand/pkg/types"
)

func TestMapReduceConcatenatesChunksInOrder(t *testing.T) {
	reg := registry.New(registry.Options{Hostname: "host"}, memory.New())
	agg := New(reg)

	agg.Begin("H:host:1", "count", "", types.PriorityNormal, 0, false, []types.ConnID{"client-1"})
	assert.True(t, agg.AddChunk("H:host:1", []byte("this")))
	assert.True(t, agg.AddChunk("H:host:1", []byte("dog")))
	assert.True(t, agg.AddChunk("H:host:1", []byte("hunts")))

	res, ok, err := agg.Complete("H:host:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "count", res.Job.Function)
	assert.Equal(t, "thisdoghunts", string(res.Job.Payload))
	assert.Equal(t, []types.ConnID{"client-1"}, res.Job.Subscribers)
}

func TestMapReduceTransfersEverySubscriber(t *testing.T) {
	reg := registry.New(registry.Options{Hostname: "host"}, memory.New())
	agg := New(reg)

	agg.Begin("H:host:1", "count", "", types.PriorityNormal, 0, false,
		[]types.ConnID{"client-1", "client-2", "client-3"})
	assert.True(t, agg.AddChunk("H:host:1", []byte("chunk")))

	res, ok, err := agg.Complete("H:host:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []types.ConnID{"client-1", "client-2", "client-3"}, res.Job.Subscribers)

	stored, found := reg.Job(res.Job.Handle)
	require.True(t, found)
	assert.ElementsMatch(t, []types.ConnID{"client-1", "client-2", "client-3"}, stored.Subscribers)
}

func TestMapReduceAbortSkipsReducer(t *testing.T) {
	reg := registry.New(registry.Options{Hostname: "host"}, memory.New())
	agg := New(reg)

	agg.Begin("H:host:1", "count", "", types.PriorityNormal, 0, false, []types.ConnID{"client-1"})
	subs, ok := agg.Abort("H:host:1")
	require.True(t, ok)
	assert.Equal(t, []types.ConnID{"client-1"}, subs)
	assert.False(t, agg.IsPartition("H:host:1"))
}

func TestCompleteUnknownHandle(t *testing.T) {
	reg := registry.New(registry.Options{Hostname: "host"}, memory.New())
	agg := New(reg)

	_, ok, err := agg.Complete("H:host:99")
	require.NoError(t, err)
	assert.False(t, ok)
}
