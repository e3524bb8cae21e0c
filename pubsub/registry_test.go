package pubsub

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func testRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRegistry(client, "", zerolog.Nop()), mr
}

func TestRegistry_Register(t *testing.T) {
	ctx := context.Background()
	registry, _ := testRegistry(t)

	t.Run("registers across all three namespaces", func(t *testing.T) {
		err := registry.Register(ctx, "A", "s1", []string{"t1", "t2"})
		assert.NoError(t, err)

		subscribers, err := registry.Channels(ctx, "t1")
		assert.NoError(t, err)
		assert.Equal(t, []Subscriber{{ConnectionID: "A", SubscriptionID: "s1"}}, subscribers)

		topics, err := registry.Topics(ctx, "s1")
		assert.NoError(t, err)
		assert.Len(t, topics, 2)
		assert.Contains(t, topics, "t1")
		assert.Contains(t, topics, "t2")

		subs, err := registry.Subscriptions(ctx, "A")
		assert.NoError(t, err)
		assert.Equal(t, []string{"s1"}, subs)
	})

	t.Run("idempotent", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.NoError(t, registry.Register(ctx, "A", "s1", []string{"t1", "t2"}))
		}

		subscribers, err := registry.Channels(ctx, "t1")
		assert.NoError(t, err)
		assert.Len(t, subscribers, 1)

		subs, err := registry.Subscriptions(ctx, "A")
		assert.NoError(t, err)
		assert.Len(t, subs, 1)
	})

	t.Run("rejects empty topics", func(t *testing.T) {
		assert.Error(t, registry.Register(ctx, "A", "s2", nil))
	})
}

func TestRegistry_Unregister(t *testing.T) {
	ctx := context.Background()
	registry, mr := testRegistry(t)

	assert.NoError(t, registry.Register(ctx, "A", "s1", []string{"t1", "t2"}))
	assert.NoError(t, registry.Register(ctx, "A", "s2", []string{"t2"}))

	assert.NoError(t, registry.Unregister(ctx, "A", "s1"))

	subscribers, err := registry.Channels(ctx, "t1")
	assert.NoError(t, err)
	assert.Empty(t, subscribers)

	subscribers, err = registry.Channels(ctx, "t2")
	assert.NoError(t, err)
	assert.Equal(t, []Subscriber{{ConnectionID: "A", SubscriptionID: "s2"}}, subscribers)

	assert.False(t, mr.Exists("pubsub:sub:s1"))

	registered, err := registry.IsRegistered(ctx, "s1")
	assert.NoError(t, err)
	assert.False(t, registered)

	registered, err = registry.IsRegistered(ctx, "s2")
	assert.NoError(t, err)
	assert.True(t, registered)

	t.Run("already removed", func(t *testing.T) {
		assert.NoError(t, registry.Unregister(ctx, "A", "s1"))
	})
}

func TestRegistry_Disconnect(t *testing.T) {
	ctx := context.Background()
	registry, mr := testRegistry(t)

	assert.NoError(t, registry.Register(ctx, "D", "s1", []string{"t1", "t2"}))
	assert.NoError(t, registry.Register(ctx, "D", "s2", []string{"t2"}))
	assert.NoError(t, registry.Register(ctx, "E", "s3", []string{"t2"}))

	assert.NoError(t, registry.Disconnect(ctx, "D"))

	// nothing in any namespace references D
	subscribers, err := registry.Channels(ctx, "t1")
	assert.NoError(t, err)
	assert.Empty(t, subscribers)

	subscribers, err = registry.Channels(ctx, "t2")
	assert.NoError(t, err)
	assert.Equal(t, []Subscriber{{ConnectionID: "E", SubscriptionID: "s3"}}, subscribers)

	assert.False(t, mr.Exists("pubsub:conn:D"))

	subs, err := registry.Subscriptions(ctx, "D")
	assert.NoError(t, err)
	assert.Empty(t, subs)

	t.Run("unknown connection", func(t *testing.T) {
		assert.NoError(t, registry.Disconnect(ctx, "nope"))
	})
}

func TestRegistry_Channels(t *testing.T) {
	ctx := context.Background()
	registry, mr := testRegistry(t)

	assert.NoError(t, registry.Register(ctx, "A", "s1", []string{"t"}))
	mr.SAdd("pubsub:topic:t", "garbage-member")

	subscribers, err := registry.Channels(ctx, "t")
	assert.NoError(t, err)
	assert.Equal(t, []Subscriber{{ConnectionID: "A", SubscriptionID: "s1"}}, subscribers)

	t.Run("empty topic", func(t *testing.T) {
		subscribers, err := registry.Channels(ctx, "unknown")
		assert.NoError(t, err)
		assert.Empty(t, subscribers)
	})
}

func TestRegistry_NewChannel(t *testing.T) {
	ctx := context.Background()
	registry, _ := testRegistry(t)

	channel := registry.NewChannel("t1", "t2")
	assert.Equal(t, []string{"t1", "t2"}, channel.Topics)

	assert.NoError(t, channel.Register(ctx, "A", "s1"))

	subscribers, err := registry.Channels(ctx, "t2")
	assert.NoError(t, err)
	assert.Equal(t, []Subscriber{{ConnectionID: "A", SubscriptionID: "s1"}}, subscribers)
}
