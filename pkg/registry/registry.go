// Package registry holds capability-provider factories and the providers
// built from static configuration at startup.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/brainstormhq/conductor/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.ProviderFactory
	providers map[string]protocol.CapabilityProvider
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[string]protocol.ProviderFactory),
		providers: make(map[string]protocol.CapabilityProvider),
	}
}

// RegisterFactory makes a provider type available for configuration-driven
// construction.
func (r *Registry) RegisterFactory(factory protocol.ProviderFactory) {
	r.factories[factory.ID()] = factory
}

// BuildProvider constructs a provider of the given type and registers it
// under name. Called once per configured provider at startup.
func (r *Registry) BuildProvider(name, providerType string, config map[string]any) error {
	factory, ok := r.factories[providerType]
	if !ok {
		return fmt.Errorf("provider type '%s' not registered", providerType)
	}

	provider, err := factory.Create(config)
	if err != nil {
		return fmt.Errorf("failed to build provider %s: %w", name, err)
	}

	r.providers[name] = provider
	r.logger.Info("Registered capability provider", "provider", name, "type", providerType)

	return nil
}

// RegisterProvider registers an already-constructed provider instance.
func (r *Registry) RegisterProvider(name string, provider protocol.CapabilityProvider) {
	r.providers[name] = provider
}

// Provider resolves a registered provider by name. An unresolvable name is a
// structural error: workflow validation should have rejected it at load.
func (r *Registry) Provider(name string) (protocol.CapabilityProvider, error) {
	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("capability provider '%s' not registered", name)
	}

	return provider, nil
}

// HasProvider reports whether a provider is registered under name.
func (r *Registry) HasProvider(name string) bool {
	_, ok := r.providers[name]

	return ok
}

// ProviderNames lists all registered provider names.
func (r *Registry) ProviderNames() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}

	return names
}
