package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/gearmand/pkg/queue"
	"github.com/cuemby/gearmand/pkg/types"
)

// replayCounter extracts the trailing counter from a handle of the form
// "H:<hostname>:<counter>", or 0 if it doesn't parse. Replay uses this to
// advance the registry's counter past every replayed handle so a
// subsequently minted handle never collides with one still on disk.
func replayCounter(handle string) uint64 {
	i := strings.LastIndexByte(handle, ':')
	if i < 0 {
		return 0
	}
	n, err := strconv.ParseUint(handle[i+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Replay re-enqueues every persisted background job on startup, treating
// each as if it were a fresh SUBMIT (spec.md §4.7: coalescence still
// collapses duplicates, and replay order follows storage order). The
// caller supplies no submitter connection since the original client is
// long gone; replayed jobs start with zero subscribers.
func (r *Registry) Replay(ctx context.Context) (int, error) {
	count := 0
	err := r.q.Replay(ctx, func(rec queue.Record) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		f := r.ensureFunctionLocked(rec.Function)
		if rec.Unique != "" {
			if _, exists := r.jobByUnique[uniqueKey(rec.Function, rec.Unique)]; exists {
				return nil
			}
		}

		// Reuse the persisted handle rather than minting a new one: the
		// queue backend's on-disk key is derived from it, and generating a
		// fresh handle here would leave Done unable to find the record
		// this job's eventual completion needs to delete. Older records
		// with no stored handle (never observable from this build, kept
		// only as a defensive fallback) mint a fresh one as before.
		handle := types.JobHandle(rec.Handle)
		if handle == "" {
			r.counter++
			handle = types.JobHandle(fmt.Sprintf("H:%s:%d", r.opts.Hostname, r.counter))
		} else if n := replayCounter(rec.Handle); n > r.counter {
			r.counter = n
		}
		job := &types.Job{
			Handle:           handle,
			Function:         rec.Function,
			Unique:           rec.Unique,
			Priority:         types.Priority(rec.Priority),
			Payload:          rec.Data,
			Epoch:            rec.Epoch,
			Background:       true,
			RetriesRemaining: r.opts.JobRetries,
		}
		r.jobByHandle[handle] = job
		if rec.Unique != "" {
			r.jobByUnique[uniqueKey(rec.Function, rec.Unique)] = job
		}
		f.queues[job.Priority].PushBack(job)
		count++
		return nil
	})
	return count, err
}
