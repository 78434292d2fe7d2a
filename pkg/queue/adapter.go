// Package queue defines the persistent queue adapter contract (spec.md
// §4.7) consumed by pkg/registry for background-job durability, plus the
// concrete backends under queue/boltqueue, queue/memory, and
// queue/redisqueue.
package queue

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Done when no matching record exists.
var ErrNotFound = errors.New("queue: record not found")

// Record is one durable background-job entry. Handle is the registry's
// job handle at the time of Add and is what every backend keys its
// on-disk entry by: two distinct jobs can legally share the same
// (Function, Unique) pair (most commonly both having an empty Unique),
// and Handle is the only field guaranteed unique per job.
type Record struct {
	Handle   string
	Function string
	Unique   string
	Data     []byte
	Priority int
	Epoch    int64
}

// ReplayFunc is invoked once per persisted record on startup so the
// registry can re-enqueue it as if it were a fresh SUBMIT (spec.md §4.7:
// coalescence still applies on replay).
type ReplayFunc func(Record) error

// Adapter is the persistent queue contract. Every method is called while
// the registry holds its single lock, so implementations must either be
// fast or hand off I/O to their own goroutine with internal buffering.
type Adapter interface {
	// Add durably records a background job before JOB_CREATED is replied.
	Add(ctx context.Context, rec Record) error

	// Done durably removes a job's record, keyed by the same handle Add
	// recorded it under, on completion or exhausted-retry failure.
	Done(ctx context.Context, handle string) error

	// Flush commits batched writes, a no-op for backends that don't batch.
	Flush(ctx context.Context) error

	// Replay invokes fn once per persisted record, in storage order.
	Replay(ctx context.Context, fn ReplayFunc) error

	// ShutdownSnapshot optionally dumps in-memory retained state to
	// storage on graceful shutdown; backends that are already fully
	// durable may no-op.
	ShutdownSnapshot(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
