package graphqlws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cocrafts/graphql/gateway"
	"github.com/cocrafts/graphql/graphql-ws/contextdao"
)

// Socket is the per-invocation view of one WebSocket connection. It lazily
// loads the connection context and pushes frames back through the gateway
// management API.
type Socket struct {
	ConnectionID string

	gateway  gateway.API
	contexts *contextdao.DAO
	marshal  func(interface{}) ([]byte, error)
	logger   zerolog.Logger

	mu     sync.Mutex
	loaded *contextdao.Context
}

func NewSocket(connectionID string, api gateway.API, contexts *contextdao.DAO, marshal func(interface{}) ([]byte, error), logger zerolog.Logger) *Socket {
	if marshal == nil {
		marshal = json.Marshal
	}
	return &Socket{
		ConnectionID: connectionID,
		gateway:      api,
		contexts:     contexts,
		marshal:      marshal,
		logger:       logger,
	}
}

// Context loads the connection context from the store, memoized for the
// invocation.
func (s *Socket) Context(ctx context.Context) (*contextdao.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded != nil {
		return s.loaded, nil
	}
	c, err := s.contexts.Load(ctx, s.ConnectionID)
	if err != nil {
		return nil, err
	}
	s.loaded = c
	return c, nil
}

// CreateContext replaces the stored context with a fresh one and memoizes it.
func (s *Socket) CreateContext(ctx context.Context, c *contextdao.Context) error {
	if err := s.contexts.Create(ctx, s.ConnectionID, c); err != nil {
		return err
	}
	s.mu.Lock()
	s.loaded = c
	s.mu.Unlock()
	return nil
}

// Send pushes one frame to the client. Byte slices and strings are sent
// as-is; anything else is marshaled first.
func (s *Socket) Send(ctx context.Context, v interface{}) error {
	var data []byte
	switch t := v.(type) {
	case []byte:
		data = t
	case json.RawMessage:
		data = t
	case string:
		data = []byte(t)
	default:
		encoded, err := s.marshal(v)
		if err != nil {
			return err
		}
		data = encoded
	}
	return s.gateway.Post(ctx, s.ConnectionID, data)
}

// Close sends the synthetic close frame and then asks the gateway to drop the
// connection. A failed frame send is logged but does not block the drop.
func (s *Socket) Close(ctx context.Context, code int, reason string) error {
	if err := s.Send(ctx, CloseMessage(code, reason)); err != nil {
		s.logger.Warn().Err(err).
			Str("connection_id", s.ConnectionID).
			Int("code", code).
			Msg("failed to deliver close frame")
	}
	return s.gateway.Delete(ctx, s.ConnectionID)
}

// Flush persists any context changes recorded during the invocation.
func (s *Socket) Flush(ctx context.Context) error {
	s.mu.Lock()
	c := s.loaded
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Flush(ctx)
}
