package eventbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brainstormhq/conductor/pkg/events"
	"github.com/brainstormhq/conductor/pkg/protocol"
)

// PersistenceWorker drains persistence events into the state store. Write
// failures are logged and the message is retried by the bus; they are never
// surfaced to the request flow that published the event.
type PersistenceWorker struct {
	bus    EventBus
	store  protocol.StateStore
	logger *slog.Logger
}

func NewPersistenceWorker(bus EventBus, store protocol.StateStore, logger *slog.Logger) *PersistenceWorker {
	return &PersistenceWorker{
		bus:    bus,
		store:  store,
		logger: logger.With("module", "persistence_worker"),
	}
}

// Start registers the event handlers and begins consuming.
func (w *PersistenceWorker) Start(ctx context.Context) error {
	if err := w.bus.Handle(events.TurnsRecordedEvent, w.handleTurnsRecorded); err != nil {
		return err
	}

	if err := w.bus.Handle(events.ExecutionCompletedEvent, w.handleExecutionCompleted); err != nil {
		return err
	}

	return w.bus.Subscribe(ctx)
}

func (w *PersistenceWorker) handleTurnsRecorded(ctx context.Context, raw interface{}) error {
	event, ok := raw.(*events.TurnsRecorded)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", raw)
	}

	err := w.store.Write(ctx, event.ConversationID, &protocol.Delta{Turns: event.Turns})
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to persist turns",
			"conversation_id", event.ConversationID,
			"turns", len(event.Turns),
			"error", err,
		)

		return err
	}

	return nil
}

func (w *PersistenceWorker) handleExecutionCompleted(ctx context.Context, raw interface{}) error {
	event, ok := raw.(*events.ExecutionCompleted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", raw)
	}

	if len(event.StateData) == 0 {
		return nil
	}

	err := w.store.Write(ctx, event.ConversationID, &protocol.Delta{StateData: event.StateData})
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to persist execution state",
			"conversation_id", event.ConversationID,
			"execution_id", event.ExecutionID,
			"error", err,
		)

		return err
	}

	return nil
}
