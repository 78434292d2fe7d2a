package registry

import (
	"container/list"

	"github.com/cuemby/gearmand/pkg/types"
)

// function is the registry's internal view of types.Function: the three
// priority FIFOs plus worker bookkeeping spec.md §4.5 describes.
type function struct {
	name         string
	maxQueueSize int
	running      int

	queues [3]*list.List // indexed by types.Priority

	// workers preserves CAN_DO registration order for non-round-robin
	// GRAB_JOB; timeouts is keyed by connection id.
	workers  []types.ConnID
	timeouts map[types.ConnID]int64 // nanosecond timeout, 0 = none

	// sleeping holds worker connections parked in PRE_SLEEP awaiting a
	// job for this function (spec.md §3 invariants 6-7).
	sleeping map[types.ConnID]bool
}

func newFunction(name string) *function {
	return &function{
		name:     name,
		queues:   [3]*list.List{list.New(), list.New(), list.New()},
		timeouts: make(map[types.ConnID]int64),
		sleeping: make(map[types.ConnID]bool),
	}
}

func (f *function) queueLen() int {
	return f.queues[0].Len() + f.queues[1].Len() + f.queues[2].Len()
}

func (f *function) addWorker(id types.ConnID, timeout int64) {
	if _, ok := f.timeouts[id]; !ok {
		f.workers = append(f.workers, id)
	}
	f.timeouts[id] = timeout
}

func (f *function) removeWorker(id types.ConnID) {
	delete(f.timeouts, id)
	delete(f.sleeping, id)
	for i, w := range f.workers {
		if w == id {
			f.workers = append(f.workers[:i], f.workers[i+1:]...)
			break
		}
	}
}
