package graphqlws

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	graphql "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"

	"github.com/cocrafts/graphql/graphql-ws/contextdao"
)

// SubscriptionResolver resolves one root subscription field. At subscribe
// time root is nil and the return value may be a *pubsub.Channel to register
// for fan-out, or any other value for a single immediate result. During
// schema-aware publishing root is the published payload.
type SubscriptionResolver func(ctx context.Context, root interface{}, args map[string]interface{}) (interface{}, error)

// Roots holds the root subscription field resolvers. Query and mutation
// operations execute against Schema instead.
type Roots struct {
	Subscription map[string]SubscriptionResolver
}

// ExecutionArgs is what an OnSubscribe hook may return to override the
// default execution pipeline.
type ExecutionArgs struct {
	Schema  *graphql.Schema
	Payload SubscribePayload
}

// Options configures the protocol handler and its application hooks. Every
// hook is optional.
type Options struct {
	// KeyPrefix namespaces the registry keys (default "pubsub").
	KeyPrefix string

	// Schema executes query/mutation operations received over the socket,
	// and validates subscribe payloads when present. SchemaFn overrides
	// Schema per subscription.
	Schema   *graphql.Schema
	SchemaFn func(ctx context.Context, c *contextdao.Context, payload SubscribePayload) *graphql.Schema

	Roots *Roots

	// Marshal/Unmarshal replace encoding/json for outbound frames and
	// inbound message parsing (the replacer/reviver hooks).
	Marshal   func(interface{}) ([]byte, error)
	Unmarshal func([]byte, interface{}) error

	// DeriveContext lets the application stuff per-connection values into
	// the context handed to resolvers.
	DeriveContext func(ctx context.Context, c *contextdao.Context) context.Context

	// OnConnect runs on ConnectionInit. Returning allowed=false closes the
	// socket with 4403; a non-nil payload is echoed in ConnectionAck.
	OnConnect func(ctx context.Context, c *contextdao.Context) (payload interface{}, allowed bool, err error)

	// OnSubscribe may reject a subscribe with errors or override the
	// execution args; returning all zero values selects the default
	// pipeline.
	OnSubscribe func(ctx context.Context, c *contextdao.Context, id string, payload SubscribePayload) (*ExecutionArgs, []*gqlerrors.QueryError, error)

	// OnNext may replace the payload of an outgoing next message.
	OnNext func(ctx context.Context, c *contextdao.Context, id string, result *graphql.Response) (interface{}, error)

	// OnError may replace the payload of an outgoing error message.
	OnError func(ctx context.Context, c *contextdao.Context, id string, errs []*gqlerrors.QueryError) (interface{}, error)

	// OnComplete observes the teardown of a registered subscription,
	// receiving the stored subscribe payload.
	OnComplete func(ctx context.Context, c *contextdao.Context, id string, payload SubscribePayload) error

	// OnDisconnect runs on DISCONNECT for acknowledged connections only;
	// OnClose runs unconditionally afterwards.
	OnDisconnect func(ctx context.Context, c *contextdao.Context, code int, reason string) error
	OnClose      func(ctx context.Context, c *contextdao.Context, code int, reason string) error

	// CustomRouteHandler receives MESSAGE events on routes other than
	// $default.
	CustomRouteHandler func(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error)
}

func (o *Options) marshal() func(interface{}) ([]byte, error) {
	if o.Marshal != nil {
		return o.Marshal
	}
	return json.Marshal
}

func (o *Options) unmarshal() func([]byte, interface{}) error {
	if o.Unmarshal != nil {
		return o.Unmarshal
	}
	return json.Unmarshal
}

func (o *Options) schemaFor(ctx context.Context, c *contextdao.Context, payload SubscribePayload) *graphql.Schema {
	if o.SchemaFn != nil {
		return o.SchemaFn(ctx, c, payload)
	}
	return o.Schema
}

func (o *Options) deriveContext(ctx context.Context, c *contextdao.Context) context.Context {
	if o.DeriveContext != nil {
		return o.DeriveContext(ctx, c)
	}
	return ctx
}

func (o *Options) subscriptionResolver(field string) (SubscriptionResolver, bool) {
	if o.Roots == nil || o.Roots.Subscription == nil {
		return nil, false
	}
	resolver, ok := o.Roots.Subscription[field]
	return resolver, ok
}
