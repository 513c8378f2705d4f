// Package static provides a scripted in-memory capability provider for
// tests and local development. Outputs are declared per action in the
// provider's configuration block.
package static

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/brainstormhq/conductor/pkg/models"
	"github.com/brainstormhq/conductor/pkg/protocol"
)

// Provider returns canned outputs keyed by action. Unknown actions fail,
// which makes the provider useful for exercising failure isolation too.
type Provider struct {
	outputs         map[string]map[string]any
	failActions     map[string]bool
	visibility      models.Visibility
	estimatedTokens int
	delay           time.Duration

	invocations atomic.Int64
}

func NewProvider(config map[string]any) (*Provider, error) {
	provider := &Provider{
		outputs:         make(map[string]map[string]any),
		failActions:     make(map[string]bool),
		visibility:      models.VisibilityPublic,
		estimatedTokens: 0,
	}

	if outputs, ok := config["outputs"].(map[string]any); ok {
		for action, value := range outputs {
			output, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("static output for action %q must be an object", action)
			}

			provider.outputs[action] = output
		}
	}

	if failures, ok := config["fail_actions"].([]any); ok {
		for _, action := range failures {
			if name, ok := action.(string); ok {
				provider.failActions[name] = true
			}
		}
	}

	if visibility, ok := config["visibility"].(string); ok && visibility == string(models.VisibilityInternal) {
		provider.visibility = models.VisibilityInternal
	}

	if tokens, ok := config["estimated_tokens"].(float64); ok {
		provider.estimatedTokens = int(tokens)
	}

	if delayMs, ok := config["delay_ms"].(float64); ok && delayMs > 0 {
		provider.delay = time.Duration(delayMs) * time.Millisecond
	}

	return provider, nil
}

func (p *Provider) Invoke(ctx context.Context, action string, _ *models.ProviderInput) (*protocol.ProviderOutput, error) {
	p.invocations.Add(1)

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}

	if p.failActions[action] {
		return nil, fmt.Errorf("scripted failure for action %q", action)
	}

	output, ok := p.outputs[action]
	if !ok {
		return nil, fmt.Errorf("no scripted output for action %q", action)
	}

	return &protocol.ProviderOutput{
		Output:          output,
		Visibility:      p.visibility,
		EstimatedTokens: p.estimatedTokens,
	}, nil
}

// Invocations returns how many times the provider has been invoked, cache
// hits excluded.
func (p *Provider) Invocations() int64 {
	return p.invocations.Load()
}
