package graphqlws

import (
	"encoding/json"
	"fmt"
	"strings"
)

// graphql-transport-ws protocol message types
// See: https://github.com/enisdenjo/graphql-ws/blob/master/PROTOCOL.md
const (
	MsgConnectionInit = "connection_init"
	MsgConnectionAck  = "connection_ack"
	MsgPing           = "ping"
	MsgPong           = "pong"
	MsgSubscribe      = "subscribe"
	MsgNext           = "next"
	MsgError          = "error"
	MsgComplete       = "complete"
)

// Subprotocols negotiated at CONNECT, in server preference order.
const (
	ProtocolGraphQLTransportWS = "graphql-transport-ws"
	ProtocolGraphQLWS          = "graphql-ws"
)

// Close codes issued on protocol violations.
const (
	CloseBadRequest              = 4400
	CloseUnauthorized            = 4401
	CloseForbidden               = 4403
	CloseSubscriberAlreadyExists = 4409
	CloseTooManyInitRequests     = 4429
)

// Message is a frame in the graphql-transport-ws protocol.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CloseFrame is the synthetic close message sent to the client before the
// gateway drops the underlying socket; a request/response gateway cannot
// issue a real WebSocket close itself.
type CloseFrame struct {
	Type   string `json:"type"`
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// SubscribePayload is the payload of a "subscribe" message.
type SubscribePayload struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

// ParseMessage parses a protocol message from a JSON frame body. A custom
// unmarshal hook (the reviver) may be nil.
func ParseMessage(body string, unmarshal func([]byte, interface{}) error) (*Message, error) {
	if unmarshal == nil {
		unmarshal = json.Unmarshal
	}
	var msg Message
	if err := unmarshal([]byte(body), &msg); err != nil {
		return nil, fmt.Errorf("invalid graphql-ws message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("missing message type")
	}
	return &msg, nil
}

// NegotiateSubprotocol picks the first supported subprotocol from the
// client's Sec-WebSocket-Protocol offerings. Returns "" when none match.
func NegotiateSubprotocol(offers []string) string {
	offered := map[string]bool{}
	for _, offer := range offers {
		for _, part := range strings.Split(offer, ",") {
			offered[strings.TrimSpace(part)] = true
		}
	}
	for _, supported := range []string{ProtocolGraphQLTransportWS, ProtocolGraphQLWS} {
		if offered[supported] {
			return supported
		}
	}
	return ""
}

// AckMessage returns a connection_ack message, optionally carrying a payload.
func AckMessage(payload json.RawMessage) Message {
	return Message{Type: MsgConnectionAck, Payload: payload}
}

// PongMessage returns a pong message echoing the ping payload, if any.
func PongMessage(payload json.RawMessage) Message {
	return Message{Type: MsgPong, Payload: payload}
}

// NextMessage returns a "next" message with the given subscription ID and
// pre-encoded payload.
func NextMessage(id string, payload json.RawMessage) Message {
	return Message{ID: id, Type: MsgNext, Payload: payload}
}

// ErrorMessage returns an "error" message with the given subscription ID and
// pre-encoded payload.
func ErrorMessage(id string, payload json.RawMessage) Message {
	return Message{ID: id, Type: MsgError, Payload: payload}
}

// CompleteMessage returns a "complete" message for the given subscription ID.
func CompleteMessage(id string) Message {
	return Message{ID: id, Type: MsgComplete}
}

// CloseMessage returns the synthetic close frame.
func CloseMessage(code int, reason string) CloseFrame {
	return CloseFrame{Type: "close", Code: code, Reason: reason}
}
