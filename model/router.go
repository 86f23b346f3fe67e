package model

import (
	"context"
	"fmt"
	"sync"
)

// Router dispatches planning calls to the Model registered for the request's
// provider.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Model
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{providers: make(map[string]Model)}
}

// Register binds a provider id to a Model, replacing any previous binding.
func (r *Router) Register(providerID string, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[providerID] = m
}

// Provider returns the Model bound to providerID.
func (r *Router) Provider(providerID string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.providers[providerID]
	return m, ok
}

// Providers lists the registered provider ids.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for id := range r.providers {
		out = append(out, id)
	}
	return out
}

// Generate implements Model.
func (r *Router) Generate(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	m, ok := r.Provider(req.ProviderID)
	if !ok {
		return nil, fmt.Errorf("no model registered for provider %q", req.ProviderID)
	}
	return m.Generate(ctx, req)
}

// Info implements Model.
func (r *Router) Info() Info { return Info{Name: "router", Provider: "multi"} }
