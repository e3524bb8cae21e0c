// Package contextdao persists per-connection protocol context as a flattened,
// type-tagged Redis hash that survives across stateless invocations.
package contextdao

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "graphql:connection:"

// Key returns the hash key holding a connection's flattened context.
func Key(connectionID string) string {
	return keyPrefix + connectionID
}

// DAO provides access to stored connection contexts.
type DAO struct {
	client redis.UniversalClient
	logger zerolog.Logger
	ttl    time.Duration
	group  singleflight.Group
}

// New creates a context DAO. A non-zero ttl lets Redis expire records that
// outlive their connection, e.g. after a crashed disconnect invocation.
func New(client redis.UniversalClient, logger zerolog.Logger, ttl time.Duration) *DAO {
	return &DAO{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Load reads and rebuilds a connection's context. A missing record yields the
// default context. Concurrent loads of the same connection share one read.
func (d *DAO) Load(ctx context.Context, connectionID string) (*Context, error) {
	v, err, _ := d.group.Do(connectionID, func() (interface{}, error) {
		return d.client.HGetAll(ctx, Key(connectionID)).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("loading context for connection %v: %w", connectionID, err)
	}

	c := Decompress(v.(map[string]string))
	c.bind(d, connectionID)
	return c, nil
}

// Create writes a freshly flattened context in one round trip, replacing any
// prior record.
func (d *DAO) Create(ctx context.Context, connectionID string, c *Context) error {
	flat, err := Flatten(c)
	if err != nil {
		return fmt.Errorf("creating context for connection %v: %w", connectionID, err)
	}

	key := Key(connectionID)
	pipe := d.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(flat) > 0 {
		pipe.HSet(ctx, key, flat)
	}
	if d.ttl > 0 {
		pipe.Expire(ctx, key, d.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("creating context for connection %v: %w", connectionID, err)
	}

	c.bind(d, connectionID)
	return nil
}

// Delete removes a connection's context record.
func (d *DAO) Delete(ctx context.Context, connectionID string) error {
	if err := d.client.Del(ctx, Key(connectionID)).Err(); err != nil {
		return fmt.Errorf("deleting context for connection %v: %w", connectionID, err)
	}
	return nil
}

// write applies a batch of recorded changes in order, grouping contiguous
// same-op runs into one HSET or HDEL each.
func (d *DAO) write(ctx context.Context, connectionID string, batch []change) error {
	key := Key(connectionID)
	pipe := d.client.Pipeline()

	for i := 0; i < len(batch); {
		j := i
		for j < len(batch) && batch[j].op == batch[i].op {
			j++
		}
		run := batch[i:j]

		if batch[i].op == opSet {
			args := make([]interface{}, 0, 2*len(run))
			for _, ch := range run {
				args = append(args, ch.field, ch.value)
			}
			pipe.HSet(ctx, key, args...)
		} else {
			fields := make([]string, 0, len(run))
			for _, ch := range run {
				fields = append(fields, ch.field)
			}
			pipe.HDel(ctx, key, fields...)
		}
		i = j
	}
	if d.ttl > 0 {
		pipe.Expire(ctx, key, d.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing context changes for connection %v: %w", connectionID, err)
	}
	return nil
}
