// Package provider implements the Provider Adapter Layer (spec §4.1):
// a uniform Provider contract plus one adapter per backend, translating
// the canonical core.Request/core.Response/core.StreamEvent schema to
// and from each backend's wire format, grounded in the teacher's
// llm2.Provider adapters (anthropic_provider.go, openai_provider.go).
package provider

import (
	"context"
	"fmt"

	"agentcore/core"
)

// Provider is implemented once per backend (Anthropic, OpenAI, Google,
// ...). CompleteStream pushes core.StreamEvent values to events as they
// arrive and returns the fully accumulated Response once the stream
// ends. The interface has no separate non-streaming method.
type Provider interface {
	Name() string
	AvailableModels() []core.ModelInfo
	SupportsModel(model string) bool
	CountTokens(req core.Request) int
	CompleteStream(ctx context.Context, req core.Request, events chan<- core.StreamEvent) (core.Response, error)
}

// Registry resolves a provider by name, preserving registration order
// for anything that enumerates "all providers" (diagnostics, CLI
// listings).
type Registry struct {
	order     []string
	providers map[string]Provider
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// Register adds or replaces the provider under its own Name().
func (r *Registry) Register(p Provider) {
	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not registered", name)
	}
	return p, nil
}

// Names returns every registered provider name in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// ProviderForModel finds the first registered provider (in registration
// order) that claims to support model.
func (r *Registry) ProviderForModel(model string) (Provider, error) {
	for _, name := range r.order {
		if r.providers[name].SupportsModel(model) {
			return r.providers[name], nil
		}
	}
	return nil, fmt.Errorf("no registered provider supports model %q", model)
}
