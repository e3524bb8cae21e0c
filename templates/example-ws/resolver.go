package main

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cocrafts/graphql/gateway"
	graphqlhttp "github.com/cocrafts/graphql/graphql-http"
	graphqlws "github.com/cocrafts/graphql/graphql-ws"
	"github.com/cocrafts/graphql/graphql-ws/payloaddao"
	"github.com/cocrafts/graphql/pubsub"
)

//go:embed example.gql
var schema string

func topicFor(room interface{}) string {
	return fmt.Sprintf("messaged:%v", room)
}

// newRoots wires the subscription fields. At subscribe time each resolver
// returns a registrable channel; at publish time it receives the published
// event as root and shapes the per-subscriber payload.
func newRoots(registry *pubsub.Registry) *graphqlws.Roots {
	return &graphqlws.Roots{
		Subscription: map[string]graphqlws.SubscriptionResolver{
			"messaged": func(ctx context.Context, root interface{}, args map[string]interface{}) (interface{}, error) {
				if root != nil {
					return root, nil
				}
				room, ok := args["room"]
				if !ok {
					return nil, fmt.Errorf("messaged requires a room argument")
				}
				return registry.NewChannel(topicFor(room)), nil
			},
			"serverTime": func(ctx context.Context, root interface{}, args map[string]interface{}) (interface{}, error) {
				// single-result subscription, no registration
				return time.Now().Format(time.RFC3339), nil
			},
		},
	}
}

// consoleServer runs the http side of the example: a query plus a mutation
// that fans the message out to every websocket subscriber of the room.
func consoleServer(logger zerolog.Logger, registry *pubsub.Registry, payloads *payloaddao.DAO) error {
	resolver := &Resolver{
		logger:   logger,
		registry: registry,
	}
	if opts.GatewayEndpoint != "" {
		resolver.publisher = &graphqlws.Publisher{
			Registry: registry,
			Gateway:  gateway.NewFromEndpoint(opts.GatewayEndpoint),
			Logger:   logger,
			Source:   graphqlws.NewSourceResolver(payloads, newRoots(registry)),
		}
	}
	return graphqlhttp.Webserver(resolver)
}

type Resolver struct {
	logger    zerolog.Logger
	registry  *pubsub.Registry
	publisher *graphqlws.Publisher
}

func (r *Resolver) Schema() string {
	return graphqlhttp.MergeSchemas(schema, graphqlhttp.Common)
}

func (r *Resolver) Config() *graphqlhttp.BaseConfig {
	return &graphqlhttp.BaseConfig{
		Logger:  r.logger,
		Service: service,
	}
}

func (r *Resolver) Health() graphqlhttp.JSON {
	return graphqlhttp.JSON{Data: map[string]interface{}{
		"status":  "ok",
		"version": service.Version,
	}}
}

func (r *Resolver) SendMessage(ctx context.Context, args struct {
	Room string
	Body string
}) (bool, error) {
	if r.publisher == nil {
		return false, fmt.Errorf("no gateway endpoint configured")
	}
	event := map[string]interface{}{
		"room":   args.Room,
		"body":   args.Body,
		"sentAt": time.Now().Format(time.RFC3339),
	}
	if err := r.publisher.Publish(ctx, topicFor(args.Room), event); err != nil {
		return false, err
	}
	return true, nil
}
