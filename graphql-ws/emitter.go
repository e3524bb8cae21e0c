package graphqlws

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"

	"github.com/cocrafts/graphql/graphql-ws/contextdao"
)

// emitter sends the per-operation protocol messages (next/error/complete) for
// one subscription id, routing payloads through the application hooks.
type emitter struct {
	socket  *Socket
	opts    *Options
	id      string
	c       *contextdao.Context
	payload SubscribePayload
}

func (e *emitter) Next(ctx context.Context, result *graphql.Response) error {
	var payload interface{} = result
	if e.opts.OnNext != nil {
		replaced, err := e.opts.OnNext(ctx, e.c, e.id, result)
		if err != nil {
			return err
		}
		if replaced != nil {
			payload = replaced
		}
	}

	encoded, err := e.opts.marshal()(payload)
	if err != nil {
		return err
	}
	return e.socket.Send(ctx, NextMessage(e.id, encoded))
}

func (e *emitter) Error(ctx context.Context, errs []*gqlerrors.QueryError) error {
	var payload interface{} = errs
	if e.opts.OnError != nil {
		replaced, err := e.opts.OnError(ctx, e.c, e.id, errs)
		if err != nil {
			return err
		}
		if replaced != nil {
			payload = replaced
		}
	}

	encoded, err := e.opts.marshal()(payload)
	if err != nil {
		return err
	}
	return e.socket.Send(ctx, ErrorMessage(e.id, encoded))
}

// Complete tears down the operation. The OnComplete hook only fires for
// operations that were registered as live subscriptions; single-result
// operations complete silently. notify controls whether the client receives a
// complete message.
func (e *emitter) Complete(ctx context.Context, notify bool) error {
	if _, registered := e.c.Subscriptions[e.id]; registered && e.opts.OnComplete != nil {
		if err := e.opts.OnComplete(ctx, e.c, e.id, e.payload); err != nil {
			return err
		}
	}
	if !notify {
		return nil
	}
	return e.socket.Send(ctx, CompleteMessage(e.id))
}
