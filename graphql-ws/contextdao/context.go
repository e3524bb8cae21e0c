package contextdao

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

type changeOp int

const (
	opSet changeOp = iota
	opDel
)

// change is one recorded mutation: the flattened hash field and, for sets,
// its encoded value.
type change struct {
	op    changeOp
	field string
	value string
}

// Context is the per-connection protocol state reconstructed on every
// invocation. Mutations go through Set and Del so they can be batched back
// to the store; the invocation must Flush before acknowledging the event.
//
// Subscriptions is in-memory bookkeeping only and never reaches the store.
type Context struct {
	ConnectionInitReceived bool
	Acknowledged           bool
	ConnectionParams       interface{}
	Extra                  map[string]interface{}
	Subscriptions          map[string]interface{}

	dao          *DAO
	connectionID string

	mu       sync.Mutex
	pending  []change
	inflight chan struct{}
	lastErr  error
}

// NewContext returns the default context for a connection with no stored
// record yet.
func NewContext() *Context {
	return &Context{
		Extra:         map[string]interface{}{},
		Subscriptions: map[string]interface{}{},
	}
}

func (c *Context) bind(dao *DAO, connectionID string) {
	c.dao = dao
	c.connectionID = connectionID
}

// Set writes value at the dotted path and records the mutation. Assigning a
// container records one change per leaf. Setting a path to its current value
// records nothing.
func (c *Context) Set(path string, value interface{}) error {
	segments := splitPath(path)
	if len(segments) == 0 {
		return fmt.Errorf("empty context path")
	}

	if current, exists := c.get(segments); exists && reflect.DeepEqual(current, value) {
		return nil
	}
	if err := c.apply(segments, value); err != nil {
		return err
	}
	if segments[0] == FieldSubscriptions {
		return nil
	}

	var changes []change
	err := walkLeaves(strings.Join(segments, "."), value, func(field, encoded string) {
		changes = append(changes, change{op: opSet, field: field, value: encoded})
	})
	if err != nil {
		return err
	}
	c.enqueue(changes)
	return nil
}

// Del removes the value at the dotted path, recording one delete per stored
// leaf under it. Deleting a missing path records nothing.
func (c *Context) Del(path string) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return
	}

	current, exists := c.get(segments)
	if !exists {
		return
	}

	var changes []change
	if segments[0] != FieldSubscriptions {
		// the stored form keeps one hash field per leaf
		_ = walkLeaves(strings.Join(segments, "."), current, func(field, _ string) {
			changes = append(changes, change{op: opDel, field: field})
		})
	}

	c.remove(segments)
	c.enqueue(changes)
}

func (c *Context) get(segments []string) (interface{}, bool) {
	switch segments[0] {
	case FieldConnectionInitReceived:
		return c.ConnectionInitReceived, len(segments) == 1
	case FieldAcknowledged:
		return c.Acknowledged, len(segments) == 1
	case FieldConnectionParams:
		if len(segments) == 1 {
			return c.ConnectionParams, c.ConnectionParams != nil
		}
		return getPath(c.ConnectionParams, segments[1:])
	case FieldExtra:
		if len(segments) == 1 {
			return c.Extra, true
		}
		return getPath(c.Extra, segments[1:])
	case FieldSubscriptions:
		if len(segments) == 1 {
			return c.Subscriptions, true
		}
		return getPath(c.Subscriptions, segments[1:])
	default:
		return nil, false
	}
}

func (c *Context) apply(segments []string, value interface{}) error {
	switch segments[0] {
	case FieldConnectionInitReceived, FieldAcknowledged:
		if len(segments) != 1 {
			return fmt.Errorf("%v has no nested fields", segments[0])
		}
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%v requires a bool, got %T", segments[0], value)
		}
		if segments[0] == FieldConnectionInitReceived {
			c.ConnectionInitReceived = b
		} else {
			c.Acknowledged = b
		}
	case FieldConnectionParams:
		if len(segments) == 1 {
			c.ConnectionParams = value
		} else {
			c.ConnectionParams = setPath(c.ConnectionParams, segments[1:], value)
		}
	case FieldExtra:
		if err := setTreeField(&c.Extra, segments, value); err != nil {
			return err
		}
	case FieldSubscriptions:
		if err := setTreeField(&c.Subscriptions, segments, value); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown context field %v", segments[0])
	}
	return nil
}

func setTreeField(field *map[string]interface{}, segments []string, value interface{}) error {
	if len(segments) == 1 {
		m, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%v requires an object, got %T", segments[0], value)
		}
		*field = m
		return nil
	}
	if m, ok := setPath(*field, segments[1:], value).(map[string]interface{}); ok {
		*field = m
	}
	return nil
}

func (c *Context) remove(segments []string) {
	switch segments[0] {
	case FieldConnectionParams:
		if len(segments) == 1 {
			c.ConnectionParams = nil
		} else {
			c.ConnectionParams, _ = delPath(c.ConnectionParams, segments[1:])
		}
	case FieldExtra:
		if len(segments) > 1 {
			if m, ok := delTreeField(c.Extra, segments); ok {
				c.Extra = m
			}
		}
	case FieldSubscriptions:
		if len(segments) > 1 {
			if m, ok := delTreeField(c.Subscriptions, segments); ok {
				c.Subscriptions = m
			}
		}
	}
}

func delTreeField(field map[string]interface{}, segments []string) (map[string]interface{}, bool) {
	updated, _ := delPath(field, segments[1:])
	m, ok := updated.(map[string]interface{})
	return m, ok
}

// enqueue appends the changes and schedules a single deferred drain if none
// is running. Detached contexts (not loaded through a DAO) track state in
// memory only.
func (c *Context) enqueue(changes []change) {
	if c.dao == nil || len(changes) == 0 {
		return
	}
	c.mu.Lock()
	c.pending = append(c.pending, changes...)
	if c.inflight == nil {
		done := make(chan struct{})
		c.inflight = done
		go c.drain(done)
	}
	c.mu.Unlock()
}

func (c *Context) drain(done chan struct{}) {
	defer close(done)
	ctx := context.Background()
	for {
		c.mu.Lock()
		batch := c.pending
		c.pending = nil
		if len(batch) == 0 {
			c.inflight = nil
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		if err := c.dao.write(ctx, c.connectionID, batch); err != nil {
			c.mu.Lock()
			c.pending = append(batch, c.pending...)
			c.lastErr = err
			c.inflight = nil
			c.mu.Unlock()
			c.dao.logger.Error().Err(err).Str("connection_id", c.connectionID).Msg("failed to persist context changes")
			return
		}
	}
}

// Flush waits for every recorded change to reach the store, retrying any
// batch a failed drain left behind. Idempotent; an error leaves the pending
// changes queued for a later Flush.
func (c *Context) Flush(ctx context.Context) error {
	if c.dao == nil {
		return nil
	}

	for {
		c.mu.Lock()
		inflight := c.inflight
		c.mu.Unlock()
		if inflight == nil {
			break
		}
		select {
		case <-inflight:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	err := c.lastErr
	c.lastErr = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return err
	}
	if err := c.dao.write(ctx, c.connectionID, batch); err != nil {
		c.mu.Lock()
		c.pending = append(batch, c.pending...)
		c.mu.Unlock()
		return err
	}
	return nil
}
