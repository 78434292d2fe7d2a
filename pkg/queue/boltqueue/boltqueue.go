// Package boltqueue persists background jobs to a single BoltDB file
// (spec.md §4.7): one bucket holding one JSON record per job, keyed by a
// hash of the job handle, survivable across a gearmand restart.
package boltqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/gearmand/internal/fnvhash"
	"github.com/cuemby/gearmand/pkg/queue"
	bolt "go.etcd.io/bbolt"
)

var bucketJobs = []byte("jobs")

// record is the on-disk JSON shape; it carries queue.Record plus the
// handle so Replay can reconstruct without decoding the bucket key.
type record struct {
	Handle   string `json:"handle"`
	Function string `json:"function"`
	Unique   string `json:"unique"`
	Data     []byte `json:"data"`
	Priority int    `json:"priority"`
	Epoch    int64  `json:"epoch"`
}

// Adapter implements queue.Adapter over a BoltDB file.
type Adapter struct {
	db *bolt.DB
}

// Open creates or opens the BoltDB-backed queue file under dataDir.
func Open(dataDir string) (*Adapter, error) {
	dbPath := filepath.Join(dataDir, "gearmand.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketJobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Adapter{db: db}, nil
}

// key derives the on-disk key via fnvhash over the job handle, giving
// deterministic keys across restarts regardless of map iteration order.
// The handle (not function+unique) is what's hashed: it is the one field
// guaranteed unique per job, so two background jobs that happen to share
// a function and unique (including both leaving unique empty, which is
// legal) never collide into the same bucket entry.
func key(handle string) []byte {
	return []byte(fmt.Sprintf("%08x", fnvhash.Sum([]byte(handle))))
}

func (a *Adapter) Add(_ context.Context, rec queue.Record) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data, err := json.Marshal(record{
			Handle:   rec.Handle,
			Function: rec.Function,
			Unique:   rec.Unique,
			Data:     rec.Data,
			Priority: rec.Priority,
			Epoch:    rec.Epoch,
		})
		if err != nil {
			return err
		}
		return b.Put(key(rec.Handle), data)
	})
}

func (a *Adapter) Done(_ context.Context, handle string) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		k := key(handle)
		if b.Get(k) == nil {
			return queue.ErrNotFound
		}
		return b.Delete(k)
	})
}

// Flush is a no-op: every Add/Done already commits its own BoltDB
// transaction, so there is nothing left to force to disk.
func (a *Adapter) Flush(_ context.Context) error { return nil }

func (a *Adapter) Replay(_ context.Context, fn queue.ReplayFunc) error {
	return a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		return b.ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("replay record %x: %w", k, err)
			}
			return fn(queue.Record{
				Handle:   rec.Handle,
				Function: rec.Function,
				Unique:   rec.Unique,
				Data:     rec.Data,
				Priority: rec.Priority,
				Epoch:    rec.Epoch,
			})
		})
	})
}

// ShutdownSnapshot is a no-op for the same reason Flush is: every mutation
// is already durable the moment its transaction commits.
func (a *Adapter) ShutdownSnapshot(_ context.Context) error { return nil }

func (a *Adapter) Close() error { return a.db.Close() }

var _ queue.Adapter = (*Adapter)(nil)
