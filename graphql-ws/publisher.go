package graphqlws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cocrafts/graphql/gateway"
	"github.com/cocrafts/graphql/graphql-ws/payloaddao"
	"github.com/cocrafts/graphql/pubsub"
)

const defaultConcurrency = 50

// SourceResolver shapes the payload delivered to one subscriber. Returning
// (nil, nil) falls back to the raw payload wrapped as {"data": payload}.
type SourceResolver func(ctx context.Context, subscriptionID string, payload interface{}) (*graphql.Response, error)

// Publisher fans a published event out to every subscriber of a topic. It
// runs outside the socket event handlers, typically in a worker or behind a
// mutation.
type Publisher struct {
	Registry *pubsub.Registry
	Gateway  gateway.API
	Logger   zerolog.Logger

	// Concurrency bounds parallel posts to the gateway (default 50).
	Concurrency int

	Marshal func(interface{}) ([]byte, error)

	// Source shapes per-subscriber payloads; nil delivers the raw payload to
	// every subscriber.
	Source SourceResolver

	// Cleanup removes a connection the gateway reports gone; defaults to
	// Registry.Disconnect.
	Cleanup func(ctx context.Context, connectionID string) error
}

// Publish delivers payload to every subscriber of the topic as a "next"
// message. Per-subscriber failures are logged, never propagated: one dead or
// slow subscriber must not fail the publish.
func (p *Publisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	if topic == "" {
		return fmt.Errorf("publishing: empty topic")
	}

	subscribers, err := p.Registry.Channels(ctx, topic)
	if err != nil {
		return err
	}
	if len(subscribers) == 0 {
		return nil
	}

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, subscriber := range subscribers {
		subscriber := subscriber
		group.Go(func() error {
			p.send(gctx, topic, subscriber, payload)
			return nil
		})
	}
	_ = group.Wait()
	return nil
}

func (p *Publisher) send(ctx context.Context, topic string, subscriber pubsub.Subscriber, payload interface{}) {
	logger := p.Logger.With().
		Str("topic", topic).
		Str("connection_id", subscriber.ConnectionID).
		Str("sub_id", subscriber.SubscriptionID).
		Logger()

	resp, err := p.resolve(ctx, subscriber.SubscriptionID, payload)
	if err != nil {
		logger.Error().Err(err).Msg("failed to resolve event payload")
		return
	}

	encoded, err := p.marshal()(resp)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode event payload")
		return
	}
	frame, err := p.marshal()(NextMessage(subscriber.SubscriptionID, encoded))
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode next message")
		return
	}

	if err := p.Gateway.Post(ctx, subscriber.ConnectionID, frame); err != nil {
		if gateway.IsGone(err) {
			logger.Info().Msg("connection gone, cleaning up")
			go p.cleanup(context.WithoutCancel(ctx), subscriber.ConnectionID)
			return
		}
		logger.Error().Err(err).Msg("failed to deliver event")
	}
}

func (p *Publisher) resolve(ctx context.Context, subscriptionID string, payload interface{}) (*graphql.Response, error) {
	if p.Source != nil {
		resp, err := p.Source(ctx, subscriptionID, payload)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
	}

	// raw mode: deliver the published payload as the data envelope
	data, err := p.marshal()(payload)
	if err != nil {
		return nil, err
	}
	return &graphql.Response{Data: json.RawMessage(data)}, nil
}

func (p *Publisher) cleanup(ctx context.Context, connectionID string) {
	cleanup := p.Cleanup
	if cleanup == nil {
		cleanup = p.Registry.Disconnect
	}
	if err := cleanup(ctx, connectionID); err != nil {
		p.Logger.Error().Err(err).Str("connection_id", connectionID).Msg("failed to clean up gone connection")
	}
}

func (p *Publisher) marshal() func(interface{}) ([]byte, error) {
	if p.Marshal != nil {
		return p.Marshal
	}
	return json.Marshal
}

// NewSourceResolver builds a schema-aware source resolver: for each event it
// loads the subscriber's stored subscribe payload and re-runs the matching
// root resolver with the published payload as root, so every subscriber
// receives the selection it asked for. Subscribers with no stored payload
// fall back to raw delivery.
func NewSourceResolver(payloads *payloaddao.DAO, roots *Roots) SourceResolver {
	return func(ctx context.Context, subscriptionID string, payload interface{}) (*graphql.Response, error) {
		raw, err := payloads.Get(ctx, subscriptionID)
		if err != nil {
			if errors.Is(err, payloaddao.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}

		var subscribe SubscribePayload
		if err := json.Unmarshal(raw, &subscribe); err != nil {
			return nil, err
		}
		field, args, err := ExtractSubscriptionField(subscribe)
		if err != nil {
			return nil, err
		}

		resolver, ok := roots.Subscription[field]
		if !ok {
			return nil, fmt.Errorf("no subscription resolver for field %v", field)
		}
		value, err := resolver(ctx, payload, args)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(map[string]interface{}{field: value})
		if err != nil {
			return nil, err
		}
		return &graphql.Response{Data: json.RawMessage(data)}, nil
	}
}
