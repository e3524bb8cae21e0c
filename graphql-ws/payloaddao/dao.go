// Package payloaddao stores the verbatim client-submitted subscribe payload
// for each subscription, so completion and disconnect hooks can observe the
// original operation.
package payloaddao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "graphql:subscription:"

// ErrNotFound is returned when no payload record exists for a subscription.
var ErrNotFound = errors.New("subscribe payload not found")

// Key returns the string key holding a subscription's subscribe payload.
func Key(subscriptionID string) string {
	return keyPrefix + subscriptionID
}

// DAO provides access to stored subscribe payloads.
type DAO struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func New(client redis.UniversalClient, ttl time.Duration) *DAO {
	return &DAO{client: client, ttl: ttl}
}

// Put stores the raw subscribe payload exactly as the client sent it.
func (d *DAO) Put(ctx context.Context, subscriptionID string, payload json.RawMessage) error {
	if err := d.client.Set(ctx, Key(subscriptionID), []byte(payload), d.ttl).Err(); err != nil {
		return fmt.Errorf("storing subscribe payload for %v: %w", subscriptionID, err)
	}
	return nil
}

// Get returns the stored subscribe payload, or ErrNotFound.
func (d *DAO) Get(ctx context.Context, subscriptionID string) (json.RawMessage, error) {
	data, err := d.client.Get(ctx, Key(subscriptionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("subscription %v: %w", subscriptionID, ErrNotFound)
		}
		return nil, fmt.Errorf("loading subscribe payload for %v: %w", subscriptionID, err)
	}
	return json.RawMessage(data), nil
}

// Delete removes the payload records of the given subscriptions.
func (d *DAO) Delete(ctx context.Context, subscriptionIDs ...string) error {
	if len(subscriptionIDs) == 0 {
		return nil
	}
	keys := make([]string, len(subscriptionIDs))
	for i, id := range subscriptionIDs {
		keys[i] = Key(id)
	}
	if err := d.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting subscribe payloads: %w", err)
	}
	return nil
}
