// Package redisqueue persists background jobs to Redis (spec.md §4.7): one
// JSON value per job-handle key plus a set tracking live keys so
// Replay can enumerate without a KEYS scan on the hot path.
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuemby/gearmand/pkg/queue"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "gearmand:job:"
	indexKey  = "gearmand:jobs"
)

// Adapter implements queue.Adapter over a Redis client.
type Adapter struct {
	client *redis.Client
}

// New wraps an already-configured go-redis client.
func New(client *redis.Client) *Adapter {
	return &Adapter{client: client}
}

type record struct {
	Handle   string `json:"handle"`
	Function string `json:"function"`
	Unique   string `json:"unique"`
	Data     []byte `json:"data"`
	Priority int    `json:"priority"`
	Epoch    int64  `json:"epoch"`
}

// dataKey derives the Redis key from the job handle rather than
// (function, unique): two background jobs legally share a function and
// unique (most commonly both leaving unique empty), and the handle is the
// only field guaranteed unique per job.
func dataKey(handle string) string {
	return keyPrefix + handle
}

func (a *Adapter) Add(ctx context.Context, rec queue.Record) error {
	data, err := json.Marshal(record{
		Handle: rec.Handle, Function: rec.Function, Unique: rec.Unique, Data: rec.Data,
		Priority: rec.Priority, Epoch: rec.Epoch,
	})
	if err != nil {
		return err
	}
	k := dataKey(rec.Handle)
	if err := a.client.Set(ctx, k, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return a.client.SAdd(ctx, indexKey, k).Err()
}

func (a *Adapter) Done(ctx context.Context, handle string) error {
	k := dataKey(handle)
	n, err := a.client.Del(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return queue.ErrNotFound
	}
	return a.client.SRem(ctx, indexKey, k).Err()
}

// Flush is a no-op: every Add/Done is already a synchronous round trip.
func (a *Adapter) Flush(_ context.Context) error { return nil }

func (a *Adapter) Replay(ctx context.Context, fn queue.ReplayFunc) error {
	keys, err := a.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("redis smembers: %w", err)
	}
	for _, k := range keys {
		data, err := a.client.Get(ctx, k).Result()
		if err == redis.Nil {
			_ = a.client.SRem(ctx, indexKey, k).Err()
			continue
		}
		if err != nil {
			return fmt.Errorf("redis get %s: %w", k, err)
		}
		var rec record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return fmt.Errorf("replay record %s: %w", k, err)
		}
		if err := fn(queue.Record{
			Handle: rec.Handle, Function: rec.Function, Unique: rec.Unique, Data: rec.Data,
			Priority: rec.Priority, Epoch: rec.Epoch,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ShutdownSnapshot is a no-op for the same reason Flush is.
func (a *Adapter) ShutdownSnapshot(_ context.Context) error { return nil }

func (a *Adapter) Close() error { return a.client.Close() }

var _ queue.Adapter = (*Adapter)(nil)
