// Package reduce implements gearmand's map-reduce aggregator (spec.md
// §4.6): SUBMIT_REDUCE_JOB[_BACKGROUND] fans out as a partition job to a
// mapper function; partition outputs arriving via WORK_DATA accumulate
// until the mapper's WORK_COMPLETE, at which point one reduce job is
// submitted to the reducer function carrying the concatenated partitions.
package reduce

import (
	"sync"

	"github.com/cuemby/gearmand/pkg/registry"
	"github.com/cuemby/gearmand/pkg/types"
)

// Aggregator tracks in-flight partition jobs keyed by the mapper job's
// handle.
type Aggregator struct {
	reg *registry.Registry

	mu    sync.Mutex
	state map[types.JobHandle]*partitionState
}

type partitionState struct {
	reducer    string
	unique     string
	priority   types.Priority
	epoch      int64
	background bool
	client     []types.ConnID
	chunks     [][]byte
}

// New creates an aggregator bound to the given registry, which it uses to
// submit the eventual reduce job.
func New(reg *registry.Registry) *Aggregator {
	return &Aggregator{reg: reg, state: make(map[types.JobHandle]*partitionState)}
}

// Begin registers the mapper job spawned for a SUBMIT_REDUCE_JOB[_BACKGROUND],
// recording the reducer identity and the original client's subscription
// (spec.md §4.6: "the original client's subscription is transferred to
// the reduce job").
func (a *Aggregator) Begin(mapperHandle types.JobHandle, reducer, unique string, priority types.Priority, epoch int64, background bool, subscribers []types.ConnID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state[mapperHandle] = &partitionState{
		reducer:    reducer,
		unique:     unique,
		priority:   priority,
		epoch:      epoch,
		background: background,
		client:     append([]types.ConnID(nil), subscribers...),
	}
}

// AddChunk accumulates one WORK_DATA partition output in arrival order.
// Arrival order with no delimiter is this port's resolution of spec.md
// §9's open question on exact reducer payload framing.
func (a *Aggregator) AddChunk(mapperHandle types.JobHandle, data []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.state[mapperHandle]
	if !ok {
		return false
	}
	st.chunks = append(st.chunks, append([]byte(nil), data...))
	return true
}

// Complete finalizes the mapper job on WORK_COMPLETE: it concatenates the
// accumulated partition chunks in arrival order and submits a single
// reduce job to the reducer function, transferring the original client's
// subscription onto it. Returns ok == false if mapperHandle names no
// tracked partition job.
func (a *Aggregator) Complete(mapperHandle types.JobHandle) (registry.SubmitResult, bool, error) {
	a.mu.Lock()
	st, ok := a.state[mapperHandle]
	if ok {
		delete(a.state, mapperHandle)
	}
	a.mu.Unlock()
	if !ok {
		return registry.SubmitResult{}, false, nil
	}

	total := 0
	for _, c := range st.chunks {
		total += len(c)
	}
	payload := make([]byte, 0, total)
	for _, c := range st.chunks {
		payload = append(payload, c...)
	}

	if len(st.client) == 0 {
		res, err := a.reg.Submit(st.reducer, st.unique, st.priority, payload, st.epoch, st.background, "")
		return res, true, err
	}

	res, err := a.reg.Submit(st.reducer, st.unique, st.priority, payload, st.epoch, st.background, st.client[0])
	if err != nil {
		return res, true, err
	}
	if len(st.client) > 1 {
		if err := a.reg.AddSubscribers(res.Job.Handle, st.client[1:]); err != nil {
			return res, true, err
		}
	}
	return res, true, nil
}

// Abort handles mapper WORK_FAIL: the reducer is never invoked and the
// original client should be notified directly by the caller (spec.md
// §4.6: "failure of the mapper propagates WORK_FAIL to the client without
// invoking the reducer").
func (a *Aggregator) Abort(mapperHandle types.JobHandle) ([]types.ConnID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.state[mapperHandle]
	if !ok {
		return nil, false
	}
	delete(a.state, mapperHandle)
	return st.client, true
}

// IsPartition reports whether handle names a tracked in-flight mapper job.
func (a *Aggregator) IsPartition(handle types.JobHandle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.state[handle]
	return ok
}
