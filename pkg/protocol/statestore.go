package protocol

import (
	"context"

	"github.com/brainstormhq/conductor/pkg/models"
)

// Delta is a best-effort write against the external state store. Appended
// turns extend the history; StateData, when present, is merged into the
// project state and bumps its revision.
type Delta struct {
	Turns     []*models.ConversationTurn `json:"turns,omitempty"`
	StateData map[string]any             `json:"state_data,omitempty"`
}

// StateStore is the external conversation/project record store. Writes are
// fire-and-forget from the engine's perspective: failures are logged by the
// persistence worker and never surfaced to callers.
type StateStore interface {
	Read(ctx context.Context, conversationID string) (*Snapshot, error)
	Write(ctx context.Context, conversationID string, delta *Delta) error
	Close() error
}
