package pubsub

import (
	"testing"

	"github.com/tj/assert"
)

func TestKeySpace(t *testing.T) {
	keys := NewKeySpace("")

	t.Run("namespaces", func(t *testing.T) {
		assert.Equal(t, "pubsub:conn:abc", keys.Connection("abc"))
		assert.Equal(t, "pubsub:sub:s1", keys.Subscription("s1"))
		assert.Equal(t, "pubsub:topic:messaged", keys.Topic("messaged"))
	})

	t.Run("custom prefix", func(t *testing.T) {
		custom := NewKeySpace("myapp")
		assert.Equal(t, "myapp:conn:abc", custom.Connection("abc"))
	})

	t.Run("tuple round trip", func(t *testing.T) {
		tuple := keys.Tuple("A", "s1")
		assert.Equal(t, "pubsub:conn:A#pubsub:sub:s1", tuple)

		connectionID, subscriptionID, ok := keys.ParseTuple(tuple)
		assert.True(t, ok)
		assert.Equal(t, "A", connectionID)
		assert.Equal(t, "s1", subscriptionID)
	})

	t.Run("malformed tuples", func(t *testing.T) {
		for _, member := range []string{"", "no-separator", "a#b#c", "pubsub:conn:A#", "#pubsub:sub:s1", "nokey#nokey"} {
			_, _, ok := keys.ParseTuple(member)
			assert.False(t, ok, member)
		}
	})

	t.Run("strip prefixes", func(t *testing.T) {
		assert.Equal(t, "messaged", keys.TopicName("pubsub:topic:messaged"))
		assert.Equal(t, "s1", keys.SubscriptionID("pubsub:sub:s1"))
	})
}
