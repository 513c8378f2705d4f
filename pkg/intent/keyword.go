// Package intent provides IntentRouter implementations. Classification
// itself is an opaque external capability; the keyword router is the
// built-in fallback when no remote classifier is configured.
package intent

import (
	"context"
	"strings"

	"github.com/brainstormhq/conductor/pkg/protocol"
)

// KeywordRule maps an intent to the keywords that signal it.
type KeywordRule struct {
	Intent   string   `json:"intent"   validate:"required"`
	Keywords []string `json:"keywords" validate:"required,min=1"`
}

// KeywordRouter scores intents by keyword hits in the raw input. Confidence
// grows with the number of matched keywords, capped at 100.
type KeywordRouter struct {
	rules         []KeywordRule
	defaultIntent string
}

// NewKeywordRouter builds a router; defaultIntent is returned with low
// confidence when nothing matches.
func NewKeywordRouter(rules []KeywordRule, defaultIntent string) *KeywordRouter {
	return &KeywordRouter{
		rules:         rules,
		defaultIntent: defaultIntent,
	}
}

func (r *KeywordRouter) Classify(_ context.Context, rawInput string, _ *protocol.Snapshot) (*protocol.Classification, error) {
	lowered := strings.ToLower(rawInput)

	best := &protocol.Classification{
		Intent:     r.defaultIntent,
		Confidence: 10,
	}

	for _, rule := range r.rules {
		hits := 0

		for _, keyword := range rule.Keywords {
			if strings.Contains(lowered, strings.ToLower(keyword)) {
				hits++
			}
		}

		if hits == 0 {
			continue
		}

		confidence := min(40+hits*20, 100)
		if confidence > best.Confidence {
			best = &protocol.Classification{
				Intent:     rule.Intent,
				Confidence: confidence,
			}
		}
	}

	return best, nil
}
