package llm

import (
	"context"
	"fmt"

	"github.com/jcjurado/outreach/internal/models"
)

// Router sends each request to the provider that serves its model. Models
// whose provider has no dedicated client go to the fallback.
type Router struct {
	catalog   models.Catalog
	providers map[string]Provider
	fallback  Provider
}

// NewRouter creates a router; fallback may be nil.
func NewRouter(catalog models.Catalog, fallback Provider) *Router {
	return &Router{
		catalog:   catalog,
		providers: make(map[string]Provider),
		fallback:  fallback,
	}
}

// Register binds a provider name (as returned by model detection) to a client.
func (r *Router) Register(provider string, p Provider) {
	r.providers[provider] = p
}

// Resolve returns the provider that would serve model.
func (r *Router) Resolve(model string) (Provider, string, error) {
	name := r.catalog.Detect(model)
	if p, ok := r.providers[name]; ok {
		return p, name, nil
	}
	if r.fallback != nil {
		return r.fallback, name, nil
	}
	return nil, name, fmt.Errorf("%w: %s (%s)", ErrNoProvider, model, name)
}

// Invoke implements Provider.
func (r *Router) Invoke(ctx context.Context, req Request) (Response, error) {
	p, name, err := r.Resolve(req.ModelID)
	if err != nil {
		return Response{}, NewGenerationError(name, req.ModelID, err)
	}
	return p.Invoke(ctx, req)
}
