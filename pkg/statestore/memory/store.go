// Package memory provides an in-process state store for tests and local
// development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brainstormhq/conductor/pkg/models"
	"github.com/brainstormhq/conductor/pkg/protocol"
)

type conversation struct {
	history []*models.ConversationTurn
	state   *models.ProjectState
}

// Store keeps conversation records in memory. Reads return copies of the
// history slice; turns themselves are read-only by contract.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*conversation),
	}
}

func (s *Store) Read(_ context.Context, conversationID string) (*protocol.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.conversations[conversationID]
	if !ok {
		return &protocol.Snapshot{
			History: nil,
			State:   &models.ProjectState{ConversationID: conversationID},
		}, nil
	}

	history := make([]*models.ConversationTurn, len(record.history))
	copy(history, record.history)

	state := *record.state

	return &protocol.Snapshot{History: history, State: &state}, nil
}

func (s *Store) Write(_ context.Context, conversationID string, delta *protocol.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.conversations[conversationID]
	if !ok {
		record = &conversation{
			state: &models.ProjectState{
				ConversationID: conversationID,
				Data:           make(map[string]any),
			},
		}
		s.conversations[conversationID] = record
	}

	for _, turn := range delta.Turns {
		if turn.ID == "" {
			turn.ID = uuid.New().String()
		}

		if turn.Timestamp.IsZero() {
			turn.Timestamp = time.Now().UTC()
		}

		record.history = append(record.history, turn)
	}

	if len(delta.StateData) > 0 {
		if record.state.Data == nil {
			record.state.Data = make(map[string]any)
		}

		for key, value := range delta.StateData {
			record.state.Data[key] = value
		}

		record.state.Revision++
	}

	return nil
}

func (s *Store) Close() error {
	return nil
}
