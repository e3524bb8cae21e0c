// Package gateway wraps the API Gateway Management API used to push frames
// to, and drop, WebSocket connections held by the host gateway.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
)

// API is the outbound capability the adapter consumes: send bytes to a
// connection id, or delete the connection. Errors expose an HTTP status via
// IsGone.
type API interface {
	Post(ctx context.Context, connectionID string, data []byte) error
	Delete(ctx context.Context, connectionID string) error
}

// Client posts to connections through one management endpoint.
type Client struct {
	api apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

func New(api apigatewaymanagementapiiface.ApiGatewayManagementApiAPI) *Client {
	return &Client{api: api}
}

// NewFromEndpoint builds a client for the given management endpoint
// (https://{domain}/{stage}).
func NewFromEndpoint(endpoint string) *Client {
	sess := session.Must(session.NewSession(aws.NewConfig().WithEndpoint(endpoint)))
	return New(apigatewaymanagementapi.New(sess))
}

func (c *Client) Post(ctx context.Context, connectionID string, data []byte) error {
	_, err := c.api.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("posting to connection %v: %w", connectionID, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, connectionID string) error {
	_, err := c.api.DeleteConnectionWithContext(ctx, &apigatewaymanagementapi.DeleteConnectionInput{
		ConnectionId: aws.String(connectionID),
	})
	if err != nil {
		return fmt.Errorf("deleting connection %v: %w", connectionID, err)
	}
	return nil
}

// Pool caches management clients by endpoint, since a fleet may serve
// multiple stages or custom domains.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewPool() *Pool {
	return &Pool{clients: make(map[string]*Client)}
}

// For returns the cached client for an endpoint, creating it on first use.
func (p *Pool) For(endpoint string) API {
	p.mu.RLock()
	if client, ok := p.clients[endpoint]; ok {
		p.mu.RUnlock()
		return client
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[endpoint]; ok {
		return client
	}

	client := NewFromEndpoint(endpoint)
	p.clients[endpoint] = client
	return client
}

// IsGone reports whether the gateway considers the connection permanently
// closed (HTTP 410).
func IsGone(err error) bool {
	if err == nil {
		return false
	}
	var failure awserr.RequestFailure
	if errors.As(err, &failure) {
		return failure.StatusCode() == http.StatusGone
	}
	return strings.Contains(err.Error(), apigatewaymanagementapi.ErrCodeGoneException) ||
		strings.Contains(err.Error(), "410")
}
