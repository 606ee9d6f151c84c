package rest

import (
	"context"
	"sync"

	"github.com/openfroyo/junction/pkg/client"
)

// Resolver returns the connection options for target.
type Resolver func(target client.Target) (Options, error)

// Factory creates REST clients and reuses them per target, so each target
// fetches a token once and refreshes it as needed.
type Factory struct {
	resolve Resolver

	mu      sync.Mutex
	clients map[client.Target]*Client
}

var _ client.Factory = (*Factory)(nil)

// NewFactory creates a factory that resolves options with resolve.
func NewFactory(resolve Resolver) *Factory {
	return &Factory{
		resolve: resolve,
		clients: make(map[client.Target]*Client),
	}
}

// Client returns the client for target, creating it on first use.
func (f *Factory) Client(ctx context.Context, target client.Target) (client.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[target]; ok {
		return c, nil
	}

	opts, err := f.resolve(target)
	if err != nil {
		return nil, err
	}
	c, err := New(ctx, opts, target.Tenant)
	if err != nil {
		return nil, err
	}
	f.clients[target] = c
	return c, nil
}
