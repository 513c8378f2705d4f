// Package protocol defines the interfaces between the coordination engine
// and its external collaborators: capability providers, the intent router,
// and the state store.
package protocol

import (
	"context"

	"github.com/brainstormhq/conductor/pkg/models"
)

// ProviderOutput is the raw outcome of one capability invocation, before it
// is folded into a ProviderCallResult.
type ProviderOutput struct {
	Output          map[string]any    `json:"output"`
	Visibility      models.Visibility `json:"visibility,omitempty"`
	EstimatedTokens int               `json:"estimated_tokens"`
}

// CapabilityProvider is an opaque unit performing one input-to-output
// transformation, typically backed by a remote, possibly non-deterministic
// call. Providers are slow and individually unreliable; a failed Invoke is
// recovered by the scheduler as a failed step result.
type CapabilityProvider interface {
	Invoke(ctx context.Context, action string, input *models.ProviderInput) (*ProviderOutput, error)
}

// ProviderFactory builds a provider from its static configuration block.
type ProviderFactory interface {
	ID() string
	Create(config map[string]any) (CapabilityProvider, error)
}
