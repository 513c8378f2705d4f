package protocol

import (
	"context"

	"github.com/brainstormhq/conductor/pkg/models"
)

// Classification is the outcome of intent routing for one raw input.
type Classification struct {
	Intent     string `json:"intent"`
	Confidence int    `json:"confidence"` // 0..100
}

// IntentRouter classifies raw input into an intent identifier. How intent is
// classified is opaque to the engine.
type IntentRouter interface {
	Classify(ctx context.Context, rawInput string, snapshot *Snapshot) (*Classification, error)
}

// Snapshot is the bounded external context fetched for one request: the
// conversation history and the persisted project state.
type Snapshot struct {
	History []*models.ConversationTurn
	State   *models.ProjectState
}
