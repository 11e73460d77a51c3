package email

import (
	"context"
	"fmt"
	"sync"
)

// Sender sends outbound emails.
type Sender interface {
	Send(ctx context.Context, msg OutboundEmail) (messageID string, err error)
}

// Adapter is a named Sender.
type Adapter interface {
	Sender
	Type() ProviderName
}

// Registry holds the configured email adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[ProviderName]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[ProviderName]Adapter)}
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Type()] = a
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name ProviderName) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return a, nil
}
