// Package events defines the persistence events emitted by coordination
// flows and drained by the background persistence worker.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/brainstormhq/conductor/pkg/models"
)

type EventType string

// Topic is the bus topic carrying persistence events.
const Topic = "conductor.persistence"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// TurnsRecordedEvent is published when conversation turns should be
	// appended to the external store.
	TurnsRecordedEvent EventType = "persistence.turns.recorded"
	// ExecutionCompletedEvent is published after a coordination flow
	// aggregates its results, carrying any project-state delta.
	ExecutionCompletedEvent EventType = "persistence.execution.completed"
)

type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	ConversationID string         `json:"conversation_id"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, conversationID string) BaseEvent {
	return BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		ConversationID: conversationID,
	}
}

// TurnsRecorded carries turns to append to a conversation's history.
type TurnsRecorded struct {
	BaseEvent

	Turns []*models.ConversationTurn `json:"turns"`
}

func (t TurnsRecorded) GetType() EventType {
	return TurnsRecordedEvent
}

func NewTurnsRecorded(conversationID string, turns []*models.ConversationTurn) TurnsRecorded {
	return TurnsRecorded{
		BaseEvent: NewBaseEvent(TurnsRecordedEvent, conversationID),
		Turns:     turns,
	}
}

// ExecutionCompleted carries the post-execution project-state delta.
type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Intent      string         `json:"intent"`
	StateData   map[string]any `json:"state_data,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

func NewExecutionCompleted(conversationID, executionID, intent string, stateData map[string]any, duration time.Duration) ExecutionCompleted {
	return ExecutionCompleted{
		BaseEvent:   NewBaseEvent(ExecutionCompletedEvent, conversationID),
		ExecutionID: executionID,
		Intent:      intent,
		StateData:   stateData,
		Duration:    duration,
	}
}
