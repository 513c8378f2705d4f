package intent

import (
	"context"
	"fmt"

	"github.com/brainstormhq/conductor/pkg/models"
	"github.com/brainstormhq/conductor/pkg/protocol"
)

const classifyAction = "classify"

// ProviderRouter delegates classification to a registered capability
// provider, keeping the classifier as opaque to the engine as every other
// provider. The provider's output must carry "intent" and "confidence"
// fields.
type ProviderRouter struct {
	provider protocol.CapabilityProvider
}

func NewProviderRouter(provider protocol.CapabilityProvider) *ProviderRouter {
	return &ProviderRouter{provider: provider}
}

func (r *ProviderRouter) Classify(ctx context.Context, rawInput string, snapshot *protocol.Snapshot) (*protocol.Classification, error) {
	input := &models.ProviderInput{
		Turn: &models.ConversationTurn{
			Role:    models.RoleUser,
			Content: rawInput,
		},
	}

	if snapshot != nil {
		input.History = snapshot.History
		input.State = snapshot.State

		if snapshot.State != nil {
			input.ConversationID = snapshot.State.ConversationID
		}
	}

	output, err := r.provider.Invoke(ctx, classifyAction, input)
	if err != nil {
		return nil, fmt.Errorf("intent classification failed: %w", err)
	}

	intentID, ok := output.Output["intent"].(string)
	if !ok || intentID == "" {
		return nil, fmt.Errorf("classifier output missing 'intent' field")
	}

	confidence := 0
	if value, ok := output.Output["confidence"].(float64); ok {
		confidence = int(value)
	}

	if confidence < 0 {
		confidence = 0
	} else if confidence > 100 {
		confidence = 100
	}

	return &protocol.Classification{
		Intent:     intentID,
		Confidence: confidence,
	}, nil
}
