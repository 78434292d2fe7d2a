// Package registry implements gearmand's job registry (spec.md §3,
// §4.4, §4.5): the function table, priority queues, unique-key
// coalescence, scheduled (epoch) jobs, and worker/client fan-out
// bookkeeping. A single mutex serializes every mutation to the
// Function/Job graph, matching spec.md §4.4's explicit simplicity
// tradeoff.
package registry

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/gearmand/pkg/metrics"
	"github.com/cuemby/gearmand/pkg/queue"
	"github.com/cuemby/gearmand/pkg/queue/memory"
	"github.com/cuemby/gearmand/pkg/types"
)

// Options configures registry-wide policy knobs (from cmd/gearmand flags).
type Options struct {
	Hostname     string
	JobRetries   int
	WorkerWakeup int // 0 means wake all sleeping workers
	RoundRobin   bool
}

// Registry owns every Function and Job in the process.
type Registry struct {
	mu sync.Mutex

	opts    Options
	q       queue.Adapter
	counter uint64

	functions   map[string]*function
	jobByHandle map[types.JobHandle]*types.Job
	jobByUnique map[string]*types.Job // key: function + "\x00" + unique

	rrCursor map[types.ConnID]int // GRAB_JOB round-robin cursor per worker

	// sleepFns records, per connection, which functions' sleeping sets it
	// was last inserted into by PreSleep. A PRE_SLEEP is one event on the
	// connection, not one per function, so waking it for any single
	// function must also drop it from every other function's sleeping
	// set; this index is what makes that cheap (spec.md §3 invariants
	// 6-7).
	sleepFns map[types.ConnID][]string
}

// New creates an empty registry. q may be nil, in which case background
// jobs are accepted but not persisted (equivalent to queue/memory without
// a snapshot backend).
func New(opts Options, q queue.Adapter) *Registry {
	if q == nil {
		q = memory.New()
	}
	return &Registry{
		opts:        opts,
		q:           q,
		functions:   make(map[string]*function),
		jobByHandle: make(map[types.JobHandle]*types.Job),
		jobByUnique: make(map[string]*types.Job),
		rrCursor:    make(map[types.ConnID]int),
		sleepFns:    make(map[types.ConnID][]string),
	}
}

func uniqueKey(fn, unique string) string {
	return fn + "\x00" + unique
}

func (r *Registry) ensureFunctionLocked(name string) *function {
	f, ok := r.functions[name]
	if !ok {
		f = newFunction(name)
		r.functions[name] = f
	}
	return f
}

// CreateFunction creates an empty function entry even with no registered
// worker (admin `create-function`).
func (r *Registry) CreateFunction(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureFunctionLocked(name)
}

// DropFunction removes a function entry (admin `drop-function`). Queued
// jobs for it are abandoned; this mirrors the original's best-effort
// semantics for an operator-invoked command.
func (r *Registry) DropFunction(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.functions, name)
}

// SetMaxQueueSize implements admin `maxqueue`; 0 means unlimited.
func (r *Registry) SetMaxQueueSize(name string, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureFunctionLocked(name).maxQueueSize = size
}

// SubmitResult carries what the processing stage needs to reply and to
// wake idle workers after a SUBMIT_JOB family command.
type SubmitResult struct {
	Job     *types.Job
	Created bool // false means the job coalesced onto an existing one
	ToWake  []types.ConnID
}

// ErrQueueFull is returned when a function's max-queue-size is exceeded.
type ErrQueueFull struct{ Function string }

func (e ErrQueueFull) Error() string { return fmt.Sprintf("job queue full: %s", e.Function) }

// Submit implements the SUBMIT_JOB family (spec.md §4.4, invariant 1):
// coalesce on (function, unique) if unique is non-empty, else always
// create a new job.
func (r *Registry) Submit(fn, unique string, priority types.Priority, payload []byte, epoch int64, background bool, submitter types.ConnID) (SubmitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.ensureFunctionLocked(fn)

	if unique != "" {
		if existing, ok := r.jobByUnique[uniqueKey(fn, unique)]; ok {
			existing.Subscribers = append(existing.Subscribers, submitter)
			return SubmitResult{Job: existing, Created: false}, nil
		}
	}

	if f.maxQueueSize > 0 && f.queueLen() >= f.maxQueueSize {
		return SubmitResult{}, ErrQueueFull{Function: fn}
	}

	r.counter++
	handle := types.JobHandle(fmt.Sprintf("H:%s:%d", r.opts.Hostname, r.counter))

	job := &types.Job{
		Handle:           handle,
		Function:         fn,
		Unique:           unique,
		Priority:         priority,
		Payload:          payload,
		Epoch:            epoch,
		Background:       background,
		RetriesRemaining: r.opts.JobRetries,
		Subscribers:      []types.ConnID{submitter},
		Created:          time.Now(),
	}

	if background {
		if err := r.q.Add(context.Background(), queue.Record{
			Handle: string(handle), Function: fn, Unique: unique, Data: payload, Priority: int(priority), Epoch: epoch,
		}); err != nil {
			return SubmitResult{}, fmt.Errorf("queue backend add: %w", err)
		}
	}

	r.jobByHandle[handle] = job
	if unique != "" {
		r.jobByUnique[uniqueKey(fn, unique)] = job
	}
	f.queues[priority].PushBack(job)

	metrics.JobsQueued.WithLabelValues(fn, priority.String()).Inc()

	toWake := r.wakeSleepersLocked(f)
	return SubmitResult{Job: job, Created: true, ToWake: toWake}, nil
}

// clearSleepLocked drops conn from every function's sleeping set it was
// last recorded in by PreSleep, and from the reverse index itself. A
// worker sleeps once, not once per function it supports, so waking it
// for any single function must clear all of them; leaving it registered
// in the others would select it again for a second, spurious NOOP the
// next time one of those functions gets a job.
func (r *Registry) clearSleepLocked(conn types.ConnID) {
	for _, fn := range r.sleepFns[conn] {
		if f, ok := r.functions[fn]; ok {
			delete(f.sleeping, conn)
		}
	}
	delete(r.sleepFns, conn)
}

// wakeSleepersLocked selects up to WorkerWakeup sleeping workers for f (0
// means all) and clears their sleeping state across every function they
// were parked on, per spec.md §3 invariant 7.
func (r *Registry) wakeSleepersLocked(f *function) []types.ConnID {
	if len(f.sleeping) == 0 {
		return nil
	}
	limit := r.opts.WorkerWakeup
	woken := make([]types.ConnID, 0, len(f.sleeping))
	for id := range f.sleeping {
		if limit > 0 && len(woken) >= limit {
			break
		}
		woken = append(woken, id)
	}
	for _, id := range woken {
		r.clearSleepLocked(id)
	}
	return woken
}

// RegisterWorker implements CAN_DO / CAN_DO_TIMEOUT.
func (r *Registry) RegisterWorker(conn types.ConnID, fn string, timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.ensureFunctionLocked(fn)
	f.addWorker(conn, int64(timeout))
}

// UnregisterWorker implements CANT_DO.
func (r *Registry) UnregisterWorker(conn types.ConnID, fn string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.functions[fn]; ok {
		f.removeWorker(conn)
	}
}

// ResetAbilities implements RESET_ABILITIES for the given previously
// registered functions.
func (r *Registry) ResetAbilities(conn types.ConnID, functions []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fn := range functions {
		if f, ok := r.functions[fn]; ok {
			f.removeWorker(conn)
		}
	}
}

// PreSleep implements PRE_SLEEP: if a dispatchable job already exists for
// any of the worker's functions, the caller should send NOOP immediately
// (wakeNow == true) instead of parking the worker.
func (r *Registry) PreSleep(conn types.ConnID, functions []string) (wakeNow bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().Unix()
	for _, fn := range functions {
		f, ok := r.functions[fn]
		if !ok {
			continue
		}
		if peekDispatchable(f, now) != nil {
			return true
		}
	}
	r.clearSleepLocked(conn)
	for _, fn := range functions {
		f := r.ensureFunctionLocked(fn)
		f.sleeping[conn] = true
	}
	r.sleepFns[conn] = append([]string(nil), functions...)
	return false
}

// peekDispatchable returns the first job that peek/take would return for
// f without mutating any state, or nil if none is currently dispatchable
// (spec.md §3 invariant 3: epoch-future jobs are skipped, not removed).
func peekDispatchable(f *function, now int64) *list.Element {
	for p := 0; p < 3; p++ {
		for e := f.queues[p].Front(); e != nil; e = e.Next() {
			job := e.Value.(*types.Job)
			if job.Ignore {
				continue
			}
			if job.Epoch > now {
				continue
			}
			return e
		}
	}
	return nil
}
