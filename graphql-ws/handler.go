// Package graphqlws adapts the graphql-transport-ws protocol to API Gateway
// WebSocket events. Connections are held by the gateway; every event arrives
// as a stateless invocation, so protocol state lives in Redis between events.
package graphqlws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	graphql "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"github.com/rs/zerolog"

	"github.com/cocrafts/graphql/gateway"
	graphqlcli "github.com/cocrafts/graphql/graphql-cli"
	"github.com/cocrafts/graphql/graphql-ws/contextdao"
	"github.com/cocrafts/graphql/graphql-ws/payloaddao"
	"github.com/cocrafts/graphql/pubsub"
)

const defaultRoute = "$default"

// Handler handles WebSocket API Gateway events for the graphql-transport-ws
// protocol.
type Handler struct {
	Options  Options
	Registry *pubsub.Registry
	Contexts *contextdao.DAO
	Payloads *payloaddao.DAO

	// Gateways resolves the management API for an endpoint
	// (https://{domain}/{stage}); typically (*gateway.Pool).For.
	Gateways func(endpoint string) gateway.API

	Logger  zerolog.Logger
	Metrics *graphqlcli.Metrics
}

// HandleEvent routes an API Gateway WebSocket event to the appropriate
// handler. Suitable for lambda.Start.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := h.Logger.With().
		Str("connection_id", req.RequestContext.ConnectionID).
		Str("event_type", req.RequestContext.EventType).
		Str("route", req.RequestContext.RouteKey).
		Logger()

	if h.Metrics != nil {
		defer h.Metrics.Timing(ctx, graphqlcli.ResponseTimeMetric, time.Now(), map[graphqlcli.DimensionName]string{
			graphqlcli.EventTypeDimension: req.RequestContext.EventType,
		})
	}

	switch req.RequestContext.EventType {
	case "CONNECT":
		return h.handleConnect(ctx, logger, req)
	case "DISCONNECT":
		return h.handleDisconnect(ctx, logger, req)
	case "MESSAGE":
		if req.RequestContext.RouteKey != defaultRoute {
			if h.Options.CustomRouteHandler != nil {
				return h.Options.CustomRouteHandler(ctx, req)
			}
			logger.Warn().Msg("message on unhandled route")
			return events.APIGatewayProxyResponse{StatusCode: 400}, nil
		}
		return h.handleMessage(ctx, logger, req)
	default:
		logger.Warn().Msg("unknown event type")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}
}

func (h *Handler) handleConnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	subprotocol := NegotiateSubprotocol(headerValues(req.MultiValueHeaders, "Sec-WebSocket-Protocol"))
	if subprotocol == "" {
		logger.Warn().Msg("client offered no supported subprotocol")
		body, _ := json.Marshal(map[string]interface{}{
			"error":             "unsupported subprotocol",
			"message":           "client must request graphql-transport-ws",
			"supportedProtocol": nil,
		})
		return events.APIGatewayProxyResponse{
			StatusCode: 400,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       string(body),
		}, nil
	}

	c := contextdao.NewContext()
	c.Extra["connectedAt"] = float64(time.Now().Unix())
	c.Extra["domainName"] = req.RequestContext.DomainName
	c.Extra["stage"] = req.RequestContext.Stage
	if req.RequestContext.Identity.SourceIP != "" {
		c.Extra["sourceIp"] = req.RequestContext.Identity.SourceIP
	}

	if err := h.Contexts.Create(ctx, req.RequestContext.ConnectionID, c); err != nil {
		logger.Error().Err(err).Msg("failed to create connection context")
		return events.APIGatewayProxyResponse{StatusCode: 500}, err
	}

	logger.Info().Str("subprotocol", subprotocol).Msg("connection established")
	return events.APIGatewayProxyResponse{
		StatusCode: 200,
		Headers:    map[string]string{"Sec-WebSocket-Protocol": subprotocol},
	}, nil
}

func (h *Handler) handleMessage(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	endpoint := fmt.Sprintf("https://%s/%s", req.RequestContext.DomainName, req.RequestContext.Stage)
	socket := NewSocket(connID, h.Gateways(endpoint), h.Contexts, h.Options.marshal(), logger)

	msg, err := ParseMessage(req.Body, h.Options.unmarshal())
	if err != nil {
		logger.Warn().Err(err).Msg("invalid message")
		if err := socket.Close(ctx, CloseBadRequest, "Invalid message received"); err != nil {
			logger.Error().Err(err).Msg("failed to close connection")
		}
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}

	c, err := socket.Context(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load connection context")
		return events.APIGatewayProxyResponse{StatusCode: 500}, err
	}

	switch msg.Type {
	case MsgConnectionInit:
		err = h.handleConnectionInit(ctx, logger, socket, c, msg)
	case MsgPing:
		err = socket.Send(ctx, PongMessage(msg.Payload))
	case MsgPong:
		// keep-alive response, nothing to do
	case MsgSubscribe:
		err = h.handleSubscribe(ctx, logger, socket, c, msg)
	case MsgComplete:
		err = h.handleComplete(ctx, logger, socket, c, msg)
	default:
		logger.Warn().Str("type", msg.Type).Msg("unknown message type")
		err = socket.Close(ctx, CloseBadRequest, "Invalid message received")
	}
	if err != nil {
		logger.Error().Err(err).Str("type", msg.Type).Msg("failed to handle message")
		return events.APIGatewayProxyResponse{StatusCode: 500}, err
	}

	if err := socket.Flush(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to persist connection context")
		return events.APIGatewayProxyResponse{StatusCode: 500}, err
	}
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleConnectionInit(ctx context.Context, logger zerolog.Logger, socket *Socket, c *contextdao.Context, msg *Message) error {
	if c.ConnectionInitReceived {
		logger.Warn().Msg("duplicate connection_init")
		return socket.Close(ctx, CloseTooManyInitRequests, "Too many initialisation requests")
	}
	if err := c.Set(contextdao.FieldConnectionInitReceived, true); err != nil {
		return err
	}

	if len(msg.Payload) > 0 {
		var params interface{}
		if err := h.Options.unmarshal()(msg.Payload, &params); err != nil {
			logger.Warn().Err(err).Msg("invalid connection_init payload")
			return socket.Close(ctx, CloseBadRequest, "Invalid message received")
		}
		if err := c.Set(contextdao.FieldConnectionParams, params); err != nil {
			return err
		}
	}

	var ackPayload json.RawMessage
	if h.Options.OnConnect != nil {
		payload, allowed, err := h.Options.OnConnect(h.Options.deriveContext(ctx, c), c)
		if err != nil {
			return err
		}
		if !allowed {
			logger.Info().Msg("connection refused")
			return socket.Close(ctx, CloseForbidden, "Forbidden")
		}
		if payload != nil {
			encoded, err := h.Options.marshal()(payload)
			if err != nil {
				return err
			}
			ackPayload = encoded
		}
	}

	if err := c.Set(contextdao.FieldAcknowledged, true); err != nil {
		return err
	}

	logger.Debug().Msg("connection acknowledged")
	return socket.Send(ctx, AckMessage(ackPayload))
}

func (h *Handler) handleSubscribe(ctx context.Context, logger zerolog.Logger, socket *Socket, c *contextdao.Context, msg *Message) error {
	if !c.Acknowledged {
		logger.Warn().Msg("subscribe before connection_init")
		return socket.Close(ctx, CloseUnauthorized, "Unauthorized")
	}
	if msg.ID == "" {
		return socket.Close(ctx, CloseBadRequest, "Invalid message received")
	}

	registered, err := h.Registry.IsRegistered(ctx, msg.ID)
	if err != nil {
		return err
	}
	if registered {
		logger.Warn().Str("sub_id", msg.ID).Msg("duplicate subscription id")
		return socket.Close(ctx, CloseSubscriberAlreadyExists, fmt.Sprintf("Subscriber for %v already exists", msg.ID))
	}

	var payload SubscribePayload
	if err := h.Options.unmarshal()(msg.Payload, &payload); err != nil {
		logger.Warn().Err(err).Msg("invalid subscribe payload")
		return socket.Close(ctx, CloseBadRequest, "Invalid message received")
	}

	// Persist the client's payload verbatim so later invocations (publish,
	// complete, disconnect) can observe the original operation.
	if err := h.Payloads.Put(ctx, msg.ID, msg.Payload); err != nil {
		return err
	}

	em := &emitter{socket: socket, opts: &h.Options, id: msg.ID, c: c, payload: payload}
	rctx := h.Options.deriveContext(ctx, c)
	schema := h.Options.schemaFor(rctx, c, payload)

	if h.Options.OnSubscribe != nil {
		args, errs, err := h.Options.OnSubscribe(rctx, c, msg.ID, payload)
		if err != nil {
			return err
		}
		if len(errs) > 0 {
			if err := em.Error(ctx, errs); err != nil {
				return err
			}
			return h.Payloads.Delete(ctx, msg.ID)
		}
		if args != nil {
			if args.Schema != nil {
				schema = args.Schema
			}
			payload = args.Payload
			em.payload = payload
		}
	}

	switch OperationKindOf(payload.Query) {
	case KindSubscription:
		return h.executeSubscription(ctx, rctx, logger, socket, c, em, schema, msg.ID, payload)
	case KindQuery, KindMutation:
		return h.executeOperation(ctx, rctx, em, schema, msg.ID, payload)
	default:
		logger.Warn().Str("sub_id", msg.ID).Msg("unidentifiable operation")
		if err := em.Error(ctx, []*gqlerrors.QueryError{gqlerrors.Errorf("Unable to identify operation")}); err != nil {
			return err
		}
		return h.Payloads.Delete(ctx, msg.ID)
	}
}

// executeSubscription resolves the root subscription field. A *pubsub.Channel
// result registers the subscription for fan-out; any other value is delivered
// immediately as a single next message.
func (h *Handler) executeSubscription(ctx, rctx context.Context, logger zerolog.Logger, socket *Socket, c *contextdao.Context, em *emitter, schema *graphql.Schema, id string, payload SubscribePayload) error {
	if schema != nil {
		if errs := schema.ValidateWithVariables(payload.Query, payload.Variables); len(errs) > 0 {
			if err := em.Error(ctx, errs); err != nil {
				return err
			}
			return h.Payloads.Delete(ctx, id)
		}
	}

	field, args, err := ExtractSubscriptionField(payload)
	if err != nil {
		if err := em.Error(ctx, []*gqlerrors.QueryError{gqlerrors.Errorf("%v", err)}); err != nil {
			return err
		}
		return h.Payloads.Delete(ctx, id)
	}

	resolver, ok := h.Options.subscriptionResolver(field)
	if !ok {
		logger.Warn().Str("field", field).Msg("unknown subscription field")
		if err := em.Error(ctx, []*gqlerrors.QueryError{gqlerrors.Errorf("no subscription resolver for field %v", field)}); err != nil {
			return err
		}
		return h.Payloads.Delete(ctx, id)
	}

	result, err := resolver(rctx, nil, args)
	if err != nil {
		logger.Warn().Err(err).Str("field", field).Msg("subscription resolver failed")
		if closeErr := socket.Close(ctx, CloseBadRequest, err.Error()); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close connection")
		}
		return err
	}

	if channel, ok := result.(*pubsub.Channel); ok {
		if err := channel.Register(ctx, socket.ConnectionID, id); err != nil {
			return err
		}
		if err := c.Set(contextdao.FieldSubscriptions+"."+id, true); err != nil {
			return err
		}
		logger.Info().Str("sub_id", id).Str("field", field).Strs("topics", channel.Topics).Msg("subscription registered")
		return nil
	}

	// Single-result subscription: deliver once, no live registration.
	resp, err := h.fieldResponse(field, result)
	if err != nil {
		return err
	}
	if err := em.Next(ctx, resp); err != nil {
		return err
	}
	if err := em.Complete(ctx, false); err != nil {
		return err
	}
	return h.Payloads.Delete(ctx, id)
}

// executeOperation runs a query or mutation received over the socket against
// the schema and delivers the single result.
func (h *Handler) executeOperation(ctx, rctx context.Context, em *emitter, schema *graphql.Schema, id string, payload SubscribePayload) error {
	if schema == nil {
		if err := em.Error(ctx, []*gqlerrors.QueryError{gqlerrors.Errorf("no schema configured")}); err != nil {
			return err
		}
		return h.Payloads.Delete(ctx, id)
	}

	if errs := schema.ValidateWithVariables(payload.Query, payload.Variables); len(errs) > 0 {
		if err := em.Error(ctx, errs); err != nil {
			return err
		}
		return h.Payloads.Delete(ctx, id)
	}

	resp := schema.Exec(rctx, payload.Query, payload.OperationName, payload.Variables)
	if err := em.Next(ctx, resp); err != nil {
		return err
	}
	if err := em.Complete(ctx, true); err != nil {
		return err
	}
	return h.Payloads.Delete(ctx, id)
}

func (h *Handler) handleComplete(ctx context.Context, logger zerolog.Logger, socket *Socket, c *contextdao.Context, msg *Message) error {
	if msg.ID == "" {
		return socket.Close(ctx, CloseBadRequest, "Invalid message received")
	}

	if err := h.Registry.Unregister(ctx, socket.ConnectionID, msg.ID); err != nil {
		return err
	}

	// a complete for a subscription we never saw is a protocol violation
	raw, err := h.Payloads.Get(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, payloaddao.ErrNotFound) {
			logger.Warn().Str("sub_id", msg.ID).Msg("complete for unknown subscription")
		}
		return err
	}

	if h.Options.OnComplete != nil {
		var payload SubscribePayload
		if err := h.Options.unmarshal()(raw, &payload); err != nil {
			return err
		}
		if err := h.Options.OnComplete(h.Options.deriveContext(ctx, c), c, msg.ID, payload); err != nil {
			return err
		}
	}

	c.Del(contextdao.FieldSubscriptions + "." + msg.ID)
	logger.Info().Str("sub_id", msg.ID).Msg("subscription completed")
	return h.Payloads.Delete(ctx, msg.ID)
}

func (h *Handler) handleDisconnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID

	code := int(req.RequestContext.DisconnectStatusCode)
	if code == 0 {
		code = 1001
	}
	reason := ""
	if req.RequestContext.DisconnectReason != nil {
		reason = *req.RequestContext.DisconnectReason
	}
	if reason == "" {
		reason = "Going away"
	}

	subs, err := h.Registry.Subscriptions(ctx, connID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list subscriptions")
		return events.APIGatewayProxyResponse{StatusCode: 500}, err
	}
	if err := h.Registry.Disconnect(ctx, connID); err != nil {
		logger.Error().Err(err).Msg("failed to clean registry")
		return events.APIGatewayProxyResponse{StatusCode: 500}, err
	}

	c, err := h.Contexts.Load(ctx, connID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load connection context")
		return events.APIGatewayProxyResponse{StatusCode: 500}, err
	}
	hctx := h.Options.deriveContext(ctx, c)

	for _, sid := range subs {
		if h.Options.OnComplete == nil {
			continue
		}
		raw, err := h.Payloads.Get(ctx, sid)
		if err != nil {
			logger.Warn().Err(err).Str("sub_id", sid).Msg("missing subscribe payload at disconnect")
			continue
		}
		var payload SubscribePayload
		if err := h.Options.unmarshal()(raw, &payload); err != nil {
			logger.Warn().Err(err).Str("sub_id", sid).Msg("malformed subscribe payload at disconnect")
			continue
		}
		if err := h.Options.OnComplete(hctx, c, sid, payload); err != nil {
			logger.Error().Err(err).Str("sub_id", sid).Msg("complete hook failed at disconnect")
		}
	}
	if err := h.Payloads.Delete(ctx, subs...); err != nil {
		logger.Error().Err(err).Msg("failed to delete subscribe payloads")
	}

	if c.Acknowledged && h.Options.OnDisconnect != nil {
		if err := h.Options.OnDisconnect(hctx, c, code, reason); err != nil {
			logger.Error().Err(err).Msg("disconnect hook failed")
		}
	}
	if h.Options.OnClose != nil {
		if err := h.Options.OnClose(hctx, c, code, reason); err != nil {
			logger.Error().Err(err).Msg("close hook failed")
		}
	}

	if err := h.Contexts.Delete(ctx, connID); err != nil {
		logger.Error().Err(err).Msg("failed to delete connection context")
		return events.APIGatewayProxyResponse{StatusCode: 500}, err
	}

	logger.Info().Int("code", code).Str("reason", reason).Msg("connection closed")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

// fieldResponse wraps a resolved value in a GraphQL response shaped as
// {"data": {field: value}}.
func (h *Handler) fieldResponse(field string, value interface{}) (*graphql.Response, error) {
	data, err := h.Options.marshal()(map[string]interface{}{field: value})
	if err != nil {
		return nil, err
	}
	return &graphql.Response{Data: json.RawMessage(data)}, nil
}

// headerValues returns the values of a multi-value header, case-insensitively.
func headerValues(headers map[string][]string, name string) []string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}
