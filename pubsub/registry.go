package pubsub

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Subscriber is a parsed channel tuple: the delivery address of one
// subscription on one connection.
type Subscriber struct {
	ConnectionID   string
	SubscriptionID string
}

// Registry maintains the many-to-many mapping between topics, subscriptions,
// and connections. Every multi-key mutation runs as a single server-side Lua
// script so concurrent invocations never observe a torn state.
//
// The scripts address keys discovered from set members at execution time, so
// the registry requires a standalone or sentinel Redis deployment; Redis
// Cluster is not supported.
type Registry struct {
	client redis.UniversalClient
	keys   KeySpace
	logger zerolog.Logger
}

func NewRegistry(client redis.UniversalClient, keyPrefix string, logger zerolog.Logger) *Registry {
	return &Registry{
		client: client,
		keys:   NewKeySpace(keyPrefix),
		logger: logger,
	}
}

func (r *Registry) Keys() KeySpace { return r.keys }

// registerScript adds the subscription to the connection's owned set, the
// tuple to every topic's subscriber set, and every topic to the
// subscription's topic set. Re-running it with the same inputs is a no-op.
//
// KEYS[1] = connection key, KEYS[2] = subscription key
// ARGV[1] = channel tuple, ARGV[2..] = topic keys
var registerScript = redis.NewScript(`
redis.call('SADD', KEYS[1], KEYS[2])
for i = 2, #ARGV do
	redis.call('SADD', ARGV[i], ARGV[1])
	redis.call('SADD', KEYS[2], ARGV[i])
end
return redis.status_reply('OK')
`)

// unregisterScript removes the tuple from every topic the subscription
// references, detaches the subscription from its connection, and deletes the
// subscription's topic set. Tolerant of an already-removed subscription.
//
// KEYS[1] = connection key, KEYS[2] = subscription key
// ARGV[1] = channel tuple
var unregisterScript = redis.NewScript(`
local topics = redis.call('SMEMBERS', KEYS[2])
for _, topic in ipairs(topics) do
	redis.call('SREM', topic, ARGV[1])
end
redis.call('SREM', KEYS[1], KEYS[2])
redis.call('DEL', KEYS[2])
return #topics
`)

// disconnectScript walks every subscription owned by the connection, removes
// its tuple from every topic, deletes the subscription's topic set, and
// finally deletes the connection's owned set.
//
// KEYS[1] = connection key
var disconnectScript = redis.NewScript(`
local subs = redis.call('SMEMBERS', KEYS[1])
for _, sub in ipairs(subs) do
	local tuple = KEYS[1] .. '#' .. sub
	local topics = redis.call('SMEMBERS', sub)
	for _, topic in ipairs(topics) do
		redis.call('SREM', topic, tuple)
	end
	redis.call('DEL', sub)
end
redis.call('DEL', KEYS[1])
return #subs
`)

// Register atomically records a subscription on every topic it references.
func (r *Registry) Register(ctx context.Context, connectionID, subscriptionID string, topics []string) error {
	if len(topics) == 0 {
		return fmt.Errorf("registering subscription %v: no topics given", subscriptionID)
	}

	keys := []string{r.keys.Connection(connectionID), r.keys.Subscription(subscriptionID)}
	argv := make([]interface{}, 0, len(topics)+1)
	argv = append(argv, r.keys.Tuple(connectionID, subscriptionID))
	for _, topic := range topics {
		argv = append(argv, r.keys.Topic(topic))
	}

	if err := registerScript.Run(ctx, r.client, keys, argv...).Err(); err != nil {
		return fmt.Errorf("registering subscription %v on connection %v: %w", subscriptionID, connectionID, err)
	}
	return nil
}

// Unregister atomically removes one subscription from every topic it references.
func (r *Registry) Unregister(ctx context.Context, connectionID, subscriptionID string) error {
	keys := []string{r.keys.Connection(connectionID), r.keys.Subscription(subscriptionID)}
	tuple := r.keys.Tuple(connectionID, subscriptionID)

	if err := unregisterScript.Run(ctx, r.client, keys, tuple).Err(); err != nil {
		return fmt.Errorf("unregistering subscription %v on connection %v: %w", subscriptionID, connectionID, err)
	}
	return nil
}

// Disconnect atomically removes every trace of the connection from the
// registry: all of its subscriptions, their topic memberships, and the
// connection's owned set.
func (r *Registry) Disconnect(ctx context.Context, connectionID string) error {
	if err := disconnectScript.Run(ctx, r.client, []string{r.keys.Connection(connectionID)}).Err(); err != nil {
		return fmt.Errorf("disconnecting connection %v: %w", connectionID, err)
	}
	return nil
}

// Channels returns the subscribers of a topic. Malformed tuples are dropped
// silently; callers tolerate concurrent mutation of the subscriber set.
func (r *Registry) Channels(ctx context.Context, topic string) ([]Subscriber, error) {
	members, err := r.client.SMembers(ctx, r.keys.Topic(topic)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading subscribers of topic %v: %w", topic, err)
	}

	subscribers := make([]Subscriber, 0, len(members))
	for _, member := range members {
		connectionID, subscriptionID, ok := r.keys.ParseTuple(member)
		if !ok {
			r.logger.Warn().Str("member", member).Str("topic", topic).Msg("dropping malformed subscriber tuple")
			continue
		}
		subscribers = append(subscribers, Subscriber{ConnectionID: connectionID, SubscriptionID: subscriptionID})
	}
	return subscribers, nil
}

// Topics returns the topic names a subscription is registered on.
func (r *Registry) Topics(ctx context.Context, subscriptionID string) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.keys.Subscription(subscriptionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading topics of subscription %v: %w", subscriptionID, err)
	}

	topics := make([]string, 0, len(members))
	for _, member := range members {
		topics = append(topics, r.keys.TopicName(member))
	}
	return topics, nil
}

// Subscriptions returns the subscription ids owned by a connection.
func (r *Registry) Subscriptions(ctx context.Context, connectionID string) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.keys.Connection(connectionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading subscriptions of connection %v: %w", connectionID, err)
	}

	ids := make([]string, 0, len(members))
	for _, member := range members {
		ids = append(ids, r.keys.SubscriptionID(member))
	}
	return ids, nil
}

// IsRegistered reports whether a subscription id is currently registered.
func (r *Registry) IsRegistered(ctx context.Context, subscriptionID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.keys.Subscription(subscriptionID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking subscription %v: %w", subscriptionID, err)
	}
	return n > 0, nil
}
