package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/gearmand/pkg/queue/memory"
	"github.com/cuemby/gearmand/pkg/types"
)

func newTestRegistry(opts Options) *Registry {
	if opts.Hostname == "" {
		opts.Hostname = "host"
	}
	return New(opts, memory.New())
}

func TestCoalescenceReturnsSameHandle(t *testing.T) {
	r := newTestRegistry(Options{})

	res1, err := r.Submit("f", "u1", types.PriorityNormal, []byte("x"), 0, false, "client-1")
	require.NoError(t, err)
	assert.True(t, res1.Created)

	res2, err := r.Submit("f", "u1", types.PriorityNormal, []byte("x"), 0, false, "client-2")
	require.NoError(t, err)
	assert.False(t, res2.Created)
	assert.Equal(t, res1.Job.Handle, res2.Job.Handle)
	assert.ElementsMatch(t, []types.ConnID{"client-1", "client-2"}, res2.Job.Subscribers)
}

func TestPriorityOrdering(t *testing.T) {
	r := newTestRegistry(Options{})
	r.RegisterWorker("worker-1", "f", 0)

	_, err := r.Submit("f", "", types.PriorityLow, []byte("a"), 0, false, "c")
	require.NoError(t, err)
	_, err = r.Submit("f", "", types.PriorityNormal, []byte("b"), 0, false, "c")
	require.NoError(t, err)
	_, err = r.Submit("f", "", types.PriorityHigh, []byte("c"), 0, false, "c")
	require.NoError(t, err)

	job1, ok := r.Grab("worker-1", []string{"f"})
	require.True(t, ok)
	assert.Equal(t, "c", string(job1.Payload))

	job2, ok := r.Grab("worker-1", []string{"f"})
	require.True(t, ok)
	assert.Equal(t, "b", string(job2.Payload))

	job3, ok := r.Grab("worker-1", []string{"f"})
	require.True(t, ok)
	assert.Equal(t, "a", string(job3.Payload))
}

func TestInOrderDrainsFirstFunctionFully(t *testing.T) {
	r := newTestRegistry(Options{RoundRobin: false})
	r.RegisterWorker("worker-1", "a", 0)
	r.RegisterWorker("worker-1", "b", 0)

	for i := 0; i < 2; i++ {
		_, err := r.Submit("a", "", types.PriorityNormal, []byte("a"), 0, false, "c")
		require.NoError(t, err)
	}
	_, err := r.Submit("b", "", types.PriorityNormal, []byte("b"), 0, false, "c")
	require.NoError(t, err)

	j1, _ := r.Grab("worker-1", []string{"a", "b"})
	j2, _ := r.Grab("worker-1", []string{"a", "b"})
	j3, _ := r.Grab("worker-1", []string{"a", "b"})

	assert.Equal(t, "a", j1.Function)
	assert.Equal(t, "a", j2.Function)
	assert.Equal(t, "b", j3.Function)
}

func TestRoundRobinAlternates(t *testing.T) {
	r := newTestRegistry(Options{RoundRobin: true})
	r.RegisterWorker("worker-1", "a", 0)
	r.RegisterWorker("worker-1", "b", 0)

	for i := 0; i < 2; i++ {
		_, err := r.Submit("a", "", types.PriorityNormal, []byte("a"), 0, false, "c")
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := r.Submit("b", "", types.PriorityNormal, []byte("b"), 0, false, "c")
		require.NoError(t, err)
	}

	j1, _ := r.Grab("worker-1", []string{"a", "b"})
	j2, _ := r.Grab("worker-1", []string{"a", "b"})
	assert.NotEqual(t, j1.Function, j2.Function)
}

func TestEpochJobNotDispatchedEarly(t *testing.T) {
	r := newTestRegistry(Options{})
	r.RegisterWorker("worker-1", "f", 0)

	future := time.Now().Add(1 * time.Hour).Unix()
	_, err := r.Submit("f", "", types.PriorityNormal, []byte("late"), future, false, "c")
	require.NoError(t, err)

	_, ok := r.Grab("worker-1", []string{"f"})
	assert.False(t, ok)
}

func TestEpochJobDispatchedOncePast(t *testing.T) {
	r := newTestRegistry(Options{})
	r.RegisterWorker("worker-1", "f", 0)

	past := time.Now().Add(-1 * time.Minute).Unix()
	_, err := r.Submit("f", "", types.PriorityNormal, []byte("ready"), past, false, "c")
	require.NoError(t, err)

	job, ok := r.Grab("worker-1", []string{"f"})
	require.True(t, ok)
	assert.Equal(t, "ready", string(job.Payload))
}

func TestDisconnectClientMarksForegroundJobIgnorable(t *testing.T) {
	r := newTestRegistry(Options{})
	res, err := r.Submit("f", "", types.PriorityNormal, []byte("x"), 0, false, "client-1")
	require.NoError(t, err)

	r.DisconnectClient("client-1")

	job, ok := r.Job(res.Job.Handle)
	require.True(t, ok)
	assert.True(t, job.Ignore)
}

func TestDisconnectWorkerRequeuesJob(t *testing.T) {
	r := newTestRegistry(Options{})
	r.RegisterWorker("worker-1", "f", 0)
	_, err := r.Submit("f", "", types.PriorityNormal, []byte("x"), 0, false, "client-1")
	require.NoError(t, err)

	job, ok := r.Grab("worker-1", []string{"f"})
	require.True(t, ok)
	require.Equal(t, types.ConnID("worker-1"), job.Worker)

	r.DisconnectWorker("worker-1")

	got, ok := r.Job(job.Handle)
	require.True(t, ok)
	assert.Equal(t, types.ConnID(""), got.Worker)
}

func TestRetriesRequeueBeforeExhausted(t *testing.T) {
	r := newTestRegistry(Options{JobRetries: 2})
	r.RegisterWorker("worker-1", "f", 0)
	res, err := r.Submit("f", "", types.PriorityNormal, []byte("x"), 0, false, "client-1")
	require.NoError(t, err)

	_, ok := r.Grab("worker-1", []string{"f"})
	require.True(t, ok)

	fr, err := r.Fail(res.Job.Handle)
	require.NoError(t, err)
	assert.True(t, fr.Retry)

	// Job should be back in the queue for a retry.
	job, ok := r.Grab("worker-1", []string{"f"})
	require.True(t, ok)
	assert.Equal(t, res.Job.Handle, job.Handle)
}

func TestRetriesExhaustedFinalizes(t *testing.T) {
	r := newTestRegistry(Options{JobRetries: 0})
	r.RegisterWorker("worker-1", "f", 0)
	res, err := r.Submit("f", "", types.PriorityNormal, []byte("x"), 0, false, "client-1")
	require.NoError(t, err)

	_, ok := r.Grab("worker-1", []string{"f"})
	require.True(t, ok)

	fr, err := r.Fail(res.Job.Handle)
	require.NoError(t, err)
	assert.False(t, fr.Retry)
	assert.Equal(t, []types.ConnID{"client-1"}, fr.Subscribers)

	_, ok = r.Job(res.Job.Handle)
	assert.False(t, ok)
}

func TestMaxQueueSizeRejectsOverflow(t *testing.T) {
	r := newTestRegistry(Options{})
	r.SetMaxQueueSize("f", 1)

	_, err := r.Submit("f", "", types.PriorityNormal, []byte("a"), 0, false, "c")
	require.NoError(t, err)

	_, err = r.Submit("f", "", types.PriorityNormal, []byte("b"), 0, false, "c")
	var fullErr ErrQueueFull
	assert.ErrorAs(t, err, &fullErr)
}

func TestPreSleepWakeClearsEveryRegisteredFunction(t *testing.T) {
	r := newTestRegistry(Options{})
	r.RegisterWorker("worker-1", "a", 0)
	r.RegisterWorker("worker-1", "b", 0)

	wakeNow := r.PreSleep("worker-1", []string{"a", "b"})
	require.False(t, wakeNow)

	res, err := r.Submit("a", "", types.PriorityNormal, []byte("x"), 0, false, "c")
	require.NoError(t, err)
	assert.Equal(t, []types.ConnID{"worker-1"}, res.ToWake)

	// worker-1 was woken via function "a"; a job arriving for "b" must not
	// select it again, since it's no longer actually sleeping.
	res2, err := r.Submit("b", "", types.PriorityNormal, []byte("y"), 0, false, "c")
	require.NoError(t, err)
	assert.Empty(t, res2.ToWake)
}

func TestDisconnectWorkerClearsSleepIndex(t *testing.T) {
	r := newTestRegistry(Options{})
	r.RegisterWorker("worker-1", "a", 0)
	r.RegisterWorker("worker-1", "b", 0)

	wakeNow := r.PreSleep("worker-1", []string{"a", "b"})
	require.False(t, wakeNow)

	r.DisconnectWorker("worker-1")
	assert.Empty(t, r.sleepFns["worker-1"])
}

func TestStatusReport(t *testing.T) {
	r := newTestRegistry(Options{})
	r.RegisterWorker("worker-1", "f", 0)
	_, err := r.Submit("f", "", types.PriorityNormal, []byte("a"), 0, false, "c")
	require.NoError(t, err)
	_, err = r.Submit("f", "", types.PriorityNormal, []byte("b"), 0, false, "c")
	require.NoError(t, err)
	_, ok := r.Grab("worker-1", []string{"f"})
	require.True(t, ok)

	report := r.StatusReport()
	require.Len(t, report, 1)
	assert.Equal(t, "f", report[0].Name)
	assert.Equal(t, 1, report[0].Running)
	assert.Equal(t, 2, report[0].Total)
	assert.Equal(t, 1, report[0].Workers)
}
