// Package eventbus provides the event-driven persistence path: coordination
// flows publish fire-and-forget events that a background worker drains into
// the state store, decoupled from request latency.
package eventbus

import (
	"context"

	"github.com/brainstormhq/conductor/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event interface{}) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
