package registry

import (
	"context"
	"fmt"

	"github.com/cuemby/gearmand/pkg/metrics"
	"github.com/cuemby/gearmand/pkg/types"
)

// ErrUnknownJob is returned by any lifecycle operation given an
// unrecognized handle.
type ErrUnknownJob struct{ Handle types.JobHandle }

func (e ErrUnknownJob) Error() string { return fmt.Sprintf("unknown job: %s", e.Handle) }

// Report updates a job's WORK_STATUS progress and returns its subscribers
// for fan-out.
func (r *Registry) Report(handle types.JobHandle, numerator, denominator int64) ([]types.ConnID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobByHandle[handle]
	if !ok {
		return nil, ErrUnknownJob{handle}
	}
	job.Numerator, job.Denominator = numerator, denominator
	return append([]types.ConnID(nil), job.Subscribers...), nil
}

// Subscribers returns a job's current subscriber list, for WORK_DATA /
// WORK_WARNING fan-out which does not otherwise mutate job state.
func (r *Registry) Subscribers(handle types.JobHandle) ([]types.ConnID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobByHandle[handle]
	if !ok {
		return nil, ErrUnknownJob{handle}
	}
	return append([]types.ConnID(nil), job.Subscribers...), nil
}

// Job returns a snapshot pointer for read-only inspection (e.g. routing a
// WORK_COMPLETE on a reduce-job partition). Callers must not mutate it
// outside the registry's lock.
func (r *Registry) Job(handle types.JobHandle) (*types.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobByHandle[handle]
	return job, ok
}

// AddSubscribers appends additional subscriber connections to an
// already-submitted job under the registry lock. This is how a caller
// that holds a *types.Job returned by Submit (e.g. the reduce aggregator
// transferring every original client onto a synthesized reduce job) may
// extend its Subscribers without racing Report/Complete/Fail/
// DisconnectClient, which all mutate that same slice while holding r.mu.
func (r *Registry) AddSubscribers(handle types.JobHandle, conns []types.ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobByHandle[handle]
	if !ok {
		return ErrUnknownJob{handle}
	}
	job.Subscribers = append(job.Subscribers, conns...)
	return nil
}

// Complete finalizes a job on WORK_COMPLETE: detach from the worker,
// remove its persistent record if background, free it from the registry,
// and return its subscribers for the caller to notify.
func (r *Registry) Complete(handle types.JobHandle) ([]types.ConnID, *types.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobByHandle[handle]
	if !ok {
		return nil, nil, ErrUnknownJob{handle}
	}

	if job.Background {
		if err := r.q.Done(context.Background(), string(job.Handle)); err != nil {
			// Logged upstream; a done failure doesn't block in-memory
			// completion (spec.md §7).
			_ = err
		}
	}
	if job.Worker != "" {
		if f, ok := r.functions[job.Function]; ok {
			f.running--
		}
	}

	subs := append([]types.ConnID(nil), job.Subscribers...)
	r.forgetJobLocked(job)
	metrics.JobsRunning.WithLabelValues(job.Function).Dec()
	metrics.JobsCompletedTotal.WithLabelValues(job.Function).Inc()
	return subs, job, nil
}

// FailResult reports what the caller should do after a WORK_FAIL.
type FailResult struct {
	Retry       bool // job was requeued; do not notify subscribers yet
	Subscribers []types.ConnID
}

// Fail implements WORK_FAIL's retry policy (spec.md §4.4): requeue at the
// job's original priority while attempts remain, else finalize and notify.
func (r *Registry) Fail(handle types.JobHandle) (FailResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobByHandle[handle]
	if !ok {
		return FailResult{}, ErrUnknownJob{handle}
	}

	f, ok := r.functions[job.Function]
	if ok {
		f.running--
	}
	job.Worker = ""

	if job.RetriesRemaining > 0 {
		job.RetriesRemaining--
		metrics.JobsRetriedTotal.WithLabelValues(job.Function).Inc()
		metrics.JobsRunning.WithLabelValues(job.Function).Dec()
		if f != nil {
			f.queues[job.Priority].PushBack(job)
			metrics.JobsQueued.WithLabelValues(job.Function, job.Priority.String()).Inc()
			r.wakeSleepersLocked(f)
		}
		return FailResult{Retry: true}, nil
	}

	if job.Background {
		if err := r.q.Done(context.Background(), string(job.Handle)); err != nil {
			_ = err
		}
	}
	subs := append([]types.ConnID(nil), job.Subscribers...)
	r.forgetJobLocked(job)
	metrics.JobsRunning.WithLabelValues(job.Function).Dec()
	metrics.JobsFailedTotal.WithLabelValues(job.Function).Inc()
	return FailResult{Retry: false, Subscribers: subs}, nil
}

// Status implements GET_STATUS / GET_STATUS_UNIQUE.
func (r *Registry) Status(handle types.JobHandle) (known, running bool, numerator, denominator int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobByHandle[handle]
	if !ok {
		return false, false, 0, 0
	}
	return true, job.Worker != "", job.Numerator, job.Denominator
}

// StatusFull is GET_STATUS_UNIQUE's variant of Status: it additionally
// reports the job's unique key for STATUS_RES_UNIQUE's reply.
func (r *Registry) StatusFull(handle types.JobHandle) (known, running bool, unique string, numerator, denominator int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobByHandle[handle]
	if !ok {
		return false, false, "", 0, 0
	}
	return true, job.Worker != "", job.Unique, job.Numerator, job.Denominator
}

// DisconnectClient implements spec.md §4.4's disconnection policy for
// clients: every foreground job this connection alone subscribes to is
// marked ignorable; jobs with other surviving subscribers just drop this
// one. Background jobs also drop this subscriber but are never marked
// ignorable.
func (r *Registry) DisconnectClient(conn types.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobByHandle {
		idx := indexOfConn(job.Subscribers, conn)
		if idx < 0 {
			continue
		}
		job.Subscribers = append(job.Subscribers[:idx], job.Subscribers[idx+1:]...)
		if len(job.Subscribers) == 0 && !job.Background {
			job.Ignore = true
		}
	}
}

// DisconnectWorker implements spec.md §4.4's disconnection policy for
// workers: any job it was running is re-queued at the head of its
// priority queue, and it is removed from every function's worker set.
func (r *Registry) DisconnectWorker(conn types.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobByHandle {
		if job.Worker != conn {
			continue
		}
		job.Worker = ""
		if f, ok := r.functions[job.Function]; ok {
			f.running--
			f.queues[job.Priority].PushFront(job)
			metrics.JobsQueued.WithLabelValues(job.Function, job.Priority.String()).Inc()
		}
		metrics.JobsRunning.WithLabelValues(job.Function).Dec()
	}

	for _, f := range r.functions {
		f.removeWorker(conn)
	}
	r.clearSleepLocked(conn)
	delete(r.rrCursor, conn)
}

func indexOfConn(list []types.ConnID, id types.ConnID) int {
	for i, c := range list {
		if c == id {
			return i
		}
	}
	return -1
}
