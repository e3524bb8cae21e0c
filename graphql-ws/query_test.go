package graphqlws

import (
	"testing"

	"github.com/tj/assert"
)

func TestOperationKindOf(t *testing.T) {
	assert.Equal(t, KindQuery, OperationKindOf(`query { hello }`))
	assert.Equal(t, KindQuery, OperationKindOf(`{ hello }`))
	assert.Equal(t, KindMutation, OperationKindOf(`mutation Send { send }`))
	assert.Equal(t, KindSubscription, OperationKindOf(`subscription { messaged }`))
	assert.Equal(t, KindUnknown, OperationKindOf(``))
	assert.Equal(t, KindUnknown, OperationKindOf(`fragment F on T { id }`))
}

func TestExtractSubscriptionField(t *testing.T) {
	t.Run("basic subscription", func(t *testing.T) {
		field, args, err := ExtractSubscriptionField(SubscribePayload{
			Query:     `subscription { messaged(room: "abc") { id body } }`,
			Variables: map[string]interface{}{"room": "abc"},
		})
		assert.NoError(t, err)
		assert.Equal(t, "messaged", field)
		assert.Equal(t, "abc", args["room"])
	})

	t.Run("named subscription", func(t *testing.T) {
		field, _, err := ExtractSubscriptionField(SubscribePayload{
			Query: `subscription WatchRoom { heartbeat { timestamp } }`,
		})
		assert.NoError(t, err)
		assert.Equal(t, "heartbeat", field)
	})

	t.Run("implicit subscription (just braces)", func(t *testing.T) {
		field, _, err := ExtractSubscriptionField(SubscribePayload{
			Query: `{ heartbeat { timestamp } }`,
		})
		assert.NoError(t, err)
		assert.Equal(t, "heartbeat", field)
	})

	t.Run("with variables", func(t *testing.T) {
		field, args, err := ExtractSubscriptionField(SubscribePayload{
			Query:     `subscription($room: ID!) { messaged(room: $room) { id } }`,
			Variables: map[string]interface{}{"room": "room123"},
		})
		assert.NoError(t, err)
		assert.Equal(t, "messaged", field)
		assert.Equal(t, "room123", args["room"])
	})

	t.Run("bare field", func(t *testing.T) {
		field, _, err := ExtractSubscriptionField(SubscribePayload{
			Query: `subscription { heartbeat }`,
		})
		assert.NoError(t, err)
		assert.Equal(t, "heartbeat", field)
	})

	t.Run("empty query fails", func(t *testing.T) {
		_, _, err := ExtractSubscriptionField(SubscribePayload{Query: ""})
		assert.Error(t, err)
	})
}
