// Package pruner bounds the conversation history handed to each capability
// provider call.
package pruner

import (
	"github.com/brainstormhq/conductor/pkg/models"
)

const (
	// DefaultWindow is the fallback fixed window applied to providers
	// without an explicit rule.
	DefaultWindow = 20
	// DefaultFilterCap bounds tag-filtered histories when a rule does not
	// set its own cap.
	DefaultFilterCap = 50
)

// Pruner applies per-provider pruning rules. Prune is pure and
// deterministic: identical arguments always produce identical output. The
// triggering turn and the state snapshot travel outside the history (see
// models.ProviderInput) and are never subject to pruning.
type Pruner struct {
	rules          map[string]models.PruningRule
	fallbackWindow int
}

type Option func(*Pruner)

// WithFallbackWindow overrides the fixed window used for providers without a
// configured rule.
func WithFallbackWindow(n int) Option {
	return func(p *Pruner) {
		p.fallbackWindow = n
	}
}

func New(rules []models.PruningRule, opts ...Option) *Pruner {
	pruner := &Pruner{
		rules:          make(map[string]models.PruningRule, len(rules)),
		fallbackWindow: DefaultWindow,
	}

	for _, rule := range rules {
		pruner.rules[rule.Provider] = rule
	}

	for _, opt := range opts {
		opt(pruner)
	}

	return pruner
}

// Rule returns the effective rule for a provider, falling back to a fixed
// window when none is configured.
func (p *Pruner) Rule(provider string) models.PruningRule {
	if rule, ok := p.rules[provider]; ok {
		return rule
	}

	return models.PruningRule{
		Provider: provider,
		Mode:     models.PruneModeFixedWindow,
		Window:   p.fallbackWindow,
	}
}

// Prune returns the bounded history for one provider call. The returned
// slice preserves chronological order and shares turn pointers with the
// input; turns are read-only by contract.
func (p *Pruner) Prune(provider string, history []*models.ConversationTurn) []*models.ConversationTurn {
	rule := p.Rule(provider)

	switch rule.Mode {
	case models.PruneModeNone:
		return history
	case models.PruneModeFilterTag:
		return filterByTag(history, rule.Tag, capOrDefault(rule.Cap))
	case models.PruneModeFixedWindow:
		return lastN(history, windowOrDefault(rule.Window, p.fallbackWindow))
	default:
		return lastN(history, p.fallbackWindow)
	}
}

// lastN keeps the most recent n turns, chronological.
func lastN(history []*models.ConversationTurn, n int) []*models.ConversationTurn {
	if len(history) <= n {
		return history
	}

	return history[len(history)-n:]
}

// filterByTag keeps turns carrying the tag, most recent first when trimming
// to the cap, returned in chronological order.
func filterByTag(history []*models.ConversationTurn, tag string, cap int) []*models.ConversationTurn {
	matched := make([]*models.ConversationTurn, 0)

	for _, turn := range history {
		if turn.HasTag(tag) {
			matched = append(matched, turn)
		}
	}

	return lastN(matched, cap)
}

func capOrDefault(cap int) int {
	if cap <= 0 {
		return DefaultFilterCap
	}

	return cap
}

func windowOrDefault(window, fallback int) int {
	if window <= 0 {
		return fallback
	}

	return window
}
