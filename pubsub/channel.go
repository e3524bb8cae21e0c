package pubsub

import "context"

// Channel is the value a subscription resolver returns to be fanned out
// later: a set of topics plus a registration callback, rather than an event
// stream. The protocol handler inspects resolver results for this type.
type Channel struct {
	Topics   []string
	Register func(ctx context.Context, connectionID, subscriptionID string) error
}

// NewChannel builds a registrable channel bound to this registry.
func (r *Registry) NewChannel(topics ...string) *Channel {
	return &Channel{
		Topics: topics,
		Register: func(ctx context.Context, connectionID, subscriptionID string) error {
			return r.Register(ctx, connectionID, subscriptionID, topics)
		},
	}
}
