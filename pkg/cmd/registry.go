package cmd

import (
	"log/slog"

	"github.com/brainstormhq/conductor/pkg/providers/httpcap"
	"github.com/brainstormhq/conductor/pkg/providers/static"
	"github.com/brainstormhq/conductor/pkg/registry"
	"github.com/brainstormhq/conductor/pkg/workflow"
)

// NewRegistry creates the provider registry with the native factories and
// builds every configured provider.
func NewRegistry(logger *slog.Logger, config *workflow.Config) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	reg.RegisterFactory(httpcap.NewFactory())
	reg.RegisterFactory(static.NewFactory())

	for _, definition := range config.Providers {
		if err := reg.BuildProvider(definition.Name, definition.Type, definition.Config); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
