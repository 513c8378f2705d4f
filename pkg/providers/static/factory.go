package static

import (
	"github.com/brainstormhq/conductor/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return "static"
}

func (f *Factory) Create(config map[string]any) (protocol.CapabilityProvider, error) {
	return NewProvider(config)
}
