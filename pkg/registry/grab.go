package registry

import (
	"time"

	"github.com/cuemby/gearmand/pkg/metrics"
	"github.com/cuemby/gearmand/pkg/types"
)

// Grab implements GRAB_JOB / GRAB_JOB_UNIQ / GRAB_JOB_ALL (spec.md §4.4):
// scan functions in the order the caller passes them, or rotated per
// worker if RoundRobin is set; within a function, priorities HIGH→LOW,
// skipping epoch-future and ignore-flagged jobs. The processing stage
// passes conn.Connection.Functions(), whose order is not the CAN_DO
// registration order.
func (r *Registry) Grab(worker types.ConnID, functions []string) (*types.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(functions) == 0 {
		return nil, false
	}

	order := functions
	if r.opts.RoundRobin {
		order = r.rotate(worker, functions)
	}

	now := time.Now().Unix()
	for _, fn := range order {
		f, ok := r.functions[fn]
		if !ok {
			continue
		}
		if job := r.takeLocked(f, now); job != nil {
			job.Worker = worker
			f.running++
			metrics.JobsQueued.WithLabelValues(fn, job.Priority.String()).Dec()
			metrics.JobsRunning.WithLabelValues(fn).Inc()
			return job, true
		}
	}
	return nil, false
}

// rotate returns functions reordered starting after this worker's last
// served index, advancing the cursor by one (spec.md §8 property 3).
func (r *Registry) rotate(worker types.ConnID, functions []string) []string {
	cursor := r.rrCursor[worker]
	n := len(functions)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = functions[(cursor+i)%n]
	}
	r.rrCursor[worker] = (cursor + 1) % n
	return out
}

// takeLocked removes and returns the highest-priority dispatchable job
// from f, purging any ignore-flagged jobs it passes over.
func (r *Registry) takeLocked(f *function, now int64) *types.Job {
	for p := 0; p < 3; p++ {
		q := f.queues[p]
		for e := q.Front(); e != nil; {
			next := e.Next()
			job := e.Value.(*types.Job)
			if job.Ignore {
				q.Remove(e)
				r.forgetJobLocked(job)
				e = next
				continue
			}
			if job.Epoch > now {
				e = next
				continue
			}
			q.Remove(e)
			return job
		}
	}
	return nil
}

func (r *Registry) forgetJobLocked(job *types.Job) {
	delete(r.jobByHandle, job.Handle)
	if job.Unique != "" {
		delete(r.jobByUnique, uniqueKey(job.Function, job.Unique))
	}
}
