// Package memory provides an in-process queue.Adapter with no durability
// across restarts, for tests and for --queue-type=memory deployments that
// accept losing background jobs on crash in exchange for zero I/O.
package memory

import (
	"context"
	"sync"

	"github.com/cuemby/gearmand/pkg/queue"
)

// Adapter stores records in a plain map guarded by a mutex; ShutdownSnapshot
// is a no-op since there is nowhere durable to write.
type Adapter struct {
	mu      sync.Mutex
	records map[string]queue.Record
}

// New creates an empty in-memory adapter.
func New() *Adapter {
	return &Adapter{records: make(map[string]queue.Record)}
}

func (a *Adapter) Add(_ context.Context, rec queue.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[rec.Handle] = rec
	return nil
}

func (a *Adapter) Done(_ context.Context, handle string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.records[handle]; !ok {
		return queue.ErrNotFound
	}
	delete(a.records, handle)
	return nil
}

func (a *Adapter) Flush(_ context.Context) error { return nil }

func (a *Adapter) Replay(_ context.Context, fn queue.ReplayFunc) error {
	a.mu.Lock()
	recs := make([]queue.Record, 0, len(a.records))
	for _, rec := range a.records {
		recs = append(recs, rec)
	}
	a.mu.Unlock()

	for _, rec := range recs {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) ShutdownSnapshot(_ context.Context) error { return nil }

func (a *Adapter) Close() error { return nil }

var _ queue.Adapter = (*Adapter)(nil)
