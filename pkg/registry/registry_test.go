package registry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainstormhq/conductor/pkg/models"
	"github.com/brainstormhq/conductor/pkg/protocol"
)

type stubProvider struct{}

func (stubProvider) Invoke(_ context.Context, _ string, _ *models.ProviderInput) (*protocol.ProviderOutput, error) {
	return &protocol.ProviderOutput{Output: map[string]any{}}, nil
}

type stubFactory struct {
	id  string
	err error
}

func (f stubFactory) ID() string {
	return f.id
}

func (f stubFactory) Create(_ map[string]any) (protocol.CapabilityProvider, error) {
	if f.err != nil {
		return nil, f.err
	}

	return stubProvider{}, nil
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func TestRegistry_BuildAndResolve(t *testing.T) {
	registry := newTestRegistry()
	registry.RegisterFactory(stubFactory{id: "static"})

	require.NoError(t, registry.BuildProvider("verify", "static", nil))

	provider, err := registry.Provider("verify")
	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.True(t, registry.HasProvider("verify"))
}

func TestRegistry_UnknownTypeFails(t *testing.T) {
	registry := newTestRegistry()

	err := registry.BuildProvider("verify", "quantum", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantum")
}

func TestRegistry_FactoryErrorPropagates(t *testing.T) {
	registry := newTestRegistry()
	registry.RegisterFactory(stubFactory{id: "static", err: errors.New("bad config")})

	err := registry.BuildProvider("verify", "static", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
}

func TestRegistry_UnknownProviderFails(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.Provider("ghost")

	require.Error(t, err)
	assert.False(t, registry.HasProvider("ghost"))
}

func TestRegistry_ProviderNames(t *testing.T) {
	registry := newTestRegistry()
	registry.RegisterProvider("a", stubProvider{})
	registry.RegisterProvider("b", stubProvider{})

	assert.ElementsMatch(t, []string{"a", "b"}, registry.ProviderNames())
}
