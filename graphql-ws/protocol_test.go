package graphqlws

import (
	"encoding/json"
	"testing"

	"github.com/tj/assert"
)

func TestProtocol(t *testing.T) {
	t.Run("ParseMessage", func(t *testing.T) {
		msg, err := ParseMessage(`{"type":"connection_init"}`, nil)
		assert.NoError(t, err)
		assert.Equal(t, MsgConnectionInit, msg.Type)
	})

	t.Run("ParseMessage missing type", func(t *testing.T) {
		_, err := ParseMessage(`{"id":"1"}`, nil)
		assert.Error(t, err)
	})

	t.Run("ParseMessage invalid json", func(t *testing.T) {
		_, err := ParseMessage(`{`, nil)
		assert.Error(t, err)
	})

	t.Run("AckMessage", func(t *testing.T) {
		data, err := json.Marshal(AckMessage(nil))
		assert.NoError(t, err)
		msg, err := ParseMessage(string(data), nil)
		assert.NoError(t, err)
		assert.Equal(t, MsgConnectionAck, msg.Type)
		assert.Nil(t, msg.Payload)
	})

	t.Run("NextMessage", func(t *testing.T) {
		data, err := json.Marshal(NextMessage("1", json.RawMessage(`{"data":{"poolId":"abc"}}`)))
		assert.NoError(t, err)
		msg, err := ParseMessage(string(data), nil)
		assert.NoError(t, err)
		assert.Equal(t, MsgNext, msg.Type)
		assert.Equal(t, "1", msg.ID)
	})

	t.Run("PongMessage echoes payload", func(t *testing.T) {
		data, err := json.Marshal(PongMessage(json.RawMessage(`{"ts":1}`)))
		assert.NoError(t, err)
		msg, err := ParseMessage(string(data), nil)
		assert.NoError(t, err)
		assert.Equal(t, MsgPong, msg.Type)
		assert.JSONEq(t, `{"ts":1}`, string(msg.Payload))
	})

	t.Run("CloseMessage", func(t *testing.T) {
		frame := CloseMessage(CloseUnauthorized, "Unauthorized")
		assert.Equal(t, "close", frame.Type)
		assert.Equal(t, 4401, frame.Code)
		assert.Equal(t, "Unauthorized", frame.Reason)
	})
}

func TestNegotiateSubprotocol(t *testing.T) {
	t.Run("prefers graphql-transport-ws", func(t *testing.T) {
		got := NegotiateSubprotocol([]string{"graphql-ws, graphql-transport-ws"})
		assert.Equal(t, ProtocolGraphQLTransportWS, got)
	})

	t.Run("accepts legacy protocol", func(t *testing.T) {
		got := NegotiateSubprotocol([]string{"graphql-ws"})
		assert.Equal(t, ProtocolGraphQLWS, got)
	})

	t.Run("multiple header values", func(t *testing.T) {
		got := NegotiateSubprotocol([]string{"foo", "graphql-transport-ws"})
		assert.Equal(t, ProtocolGraphQLTransportWS, got)
	})

	t.Run("no supported offer", func(t *testing.T) {
		assert.Equal(t, "", NegotiateSubprotocol([]string{"soap"}))
		assert.Equal(t, "", NegotiateSubprotocol(nil))
	})
}
