package coordination

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brainstormhq/conductor/pkg/eventbus"
	"github.com/brainstormhq/conductor/pkg/events"
	"github.com/brainstormhq/conductor/pkg/models"
	"github.com/brainstormhq/conductor/pkg/otelhelper"
	"github.com/brainstormhq/conductor/pkg/protocol"
	"github.com/brainstormhq/conductor/pkg/scheduler"
	"github.com/brainstormhq/conductor/pkg/workflow"
)

// RequestState tracks one coordination flow through its lifecycle. Failed is
// reachable only from unresolved intent or unknown workflow; every later
// stage absorbs partial failure.
type RequestState string

const (
	StateReceived         RequestState = "received"
	StateIntentResolved   RequestState = "intent_resolved"
	StateWorkflowSelected RequestState = "workflow_selected"
	StateExecuting        RequestState = "executing"
	StateAggregated       RequestState = "aggregated"
	StatePersisted        RequestState = "persisted"
	StateResponded        RequestState = "responded"
	StateFailed           RequestState = "failed"
)

// stateDeltaKey is the output field through which providers hand back
// project-state mutations to persist.
const stateDeltaKey = "state_delta"

// Service is the top-level coordination façade: it resolves intent, selects
// the workflow, drives the scheduler, merges results, and triggers
// best-effort persistence.
type Service struct {
	router    protocol.IntentRouter
	workflows *workflow.Registry
	scheduler *scheduler.Scheduler
	store     protocol.StateStore
	publisher eventbus.EventPublisher

	tracer trace.Tracer
	logger *slog.Logger
}

type Option func(*Service)

// WithTracer enables span emission around coordination flows.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func NewService(
	router protocol.IntentRouter,
	workflows *workflow.Registry,
	sched *scheduler.Scheduler,
	store protocol.StateStore,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	service := &Service{
		router:    router,
		workflows: workflows,
		scheduler: sched,
		store:     store,
		publisher: publisher,
		logger:    logger.With("module", "coordination"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// Handle runs one coordination flow. The returned FinalResponse reflects
// whichever steps succeeded; partial success is expected and valid. Only a
// structural error (unresolved intent, unknown workflow) produces an
// explicit failure.
func (s *Service) Handle(ctx context.Context, conversationID, rawInput string) (*models.FinalResponse, error) {
	executionID := "exec-" + uuid.New().String()[:8]
	started := time.Now()

	logger := s.logger.With(
		"conversation_id", conversationID,
		"execution_id", executionID,
	)
	logger.InfoContext(ctx, "Request received", "state", StateReceived)

	if s.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, s.tracer, "coordination.handle",
			attribute.String(otelhelper.ConversationIDKey, conversationID),
			attribute.String(otelhelper.ExecutionIDKey, executionID),
		)
		defer span.End()
	}

	snapshot := s.fetchContext(ctx, conversationID, logger)

	classification, err := s.router.Classify(ctx, rawInput, snapshot)
	if err != nil {
		logger.ErrorContext(ctx, "Intent classification failed", "state", StateFailed, "error", err)

		return nil, fmt.Errorf("%w: %v", ErrIntentUnresolved, err)
	}

	logger = logger.With("intent", classification.Intent)
	logger.InfoContext(ctx, "Intent resolved", "state", StateIntentResolved, "confidence", classification.Confidence)

	selected, err := s.workflows.Resolve(classification.Intent)
	if err != nil {
		logger.ErrorContext(ctx, "No workflow for intent", "state", StateFailed, "error", err)

		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, classification.Intent)
	}

	logger.InfoContext(ctx, "Workflow selected", "state", StateWorkflowSelected, "steps", len(selected.Steps))

	turn := &models.ConversationTurn{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   rawInput,
		Timestamp: time.Now().UTC(),
	}

	request := &scheduler.Request{
		ConversationID: conversationID,
		ExecutionID:    executionID,
		Turn:           turn,
		History:        snapshot.History,
		State:          snapshot.State,
		StateHash:      snapshot.State.Fingerprint(),
		Confidence:     classification.Confidence,
	}

	logger.InfoContext(ctx, "Executing workflow", "state", StateExecuting)

	aggregated, err := s.scheduler.Execute(ctx, selected, request)
	if err != nil {
		// Structural only: the scheduler absorbs provider failures itself.
		logger.ErrorContext(ctx, "Workflow execution aborted", "state", StateFailed, "error", err)

		return nil, err
	}

	logger.InfoContext(ctx, "Results aggregated", "state", StateAggregated, "results", len(aggregated.Results))

	response := mergeResponse(conversationID, classification, aggregated)

	s.persist(ctx, conversationID, turn, aggregated, time.Since(started), logger)
	logger.InfoContext(ctx, "Persistence dispatched", "state", StatePersisted)

	logger.InfoContext(ctx, "Request completed", "state", StateResponded, "duration", time.Since(started))

	return response, nil
}

// fetchContext reads the bounded external context. A store failure degrades
// to an empty snapshot rather than failing the flow.
func (s *Service) fetchContext(ctx context.Context, conversationID string, logger *slog.Logger) *protocol.Snapshot {
	snapshot, err := s.store.Read(ctx, conversationID)
	if err != nil {
		logger.WarnContext(ctx, "State store read failed, continuing with empty context", "error", err)

		return &protocol.Snapshot{
			State: &models.ProjectState{ConversationID: conversationID},
		}
	}

	if snapshot.State == nil {
		snapshot.State = &models.ProjectState{ConversationID: conversationID}
	}

	return snapshot
}

// mergeResponse folds the aggregated step outcomes into the user-facing
// response: public successful outputs only, with a summary of every step.
func mergeResponse(conversationID string, classification *protocol.Classification, aggregated *models.AggregatedResult) *models.FinalResponse {
	response := &models.FinalResponse{
		ConversationID: conversationID,
		ExecutionID:    aggregated.ExecutionID,
		Intent:         aggregated.Intent,
		Confidence:     classification.Confidence,
		Outputs:        make([]*models.ProviderCallResult, 0, len(aggregated.Results)),
		Steps:          make([]models.StepSummary, 0, len(aggregated.Results)),
	}

	for _, result := range aggregated.Results {
		response.Steps = append(response.Steps, models.StepSummary{
			Provider:  result.Provider,
			Action:    result.Action,
			Status:    result.Status,
			FromCache: result.FromCache,
			Error:     result.Error,
		})

		if result.Status == models.StepStatusSuccess && result.Visibility == models.VisibilityPublic {
			response.Outputs = append(response.Outputs, result)
		}
	}

	return response
}

// persist emits fire-and-forget persistence events: the triggering turn,
// assistant turns for public outputs, and any state deltas providers handed
// back. Publish failures are logged, never surfaced.
func (s *Service) persist(
	ctx context.Context,
	conversationID string,
	turn *models.ConversationTurn,
	aggregated *models.AggregatedResult,
	duration time.Duration,
	logger *slog.Logger,
) {
	turns := []*models.ConversationTurn{turn}

	for _, result := range aggregated.Results {
		if result.Status != models.StepStatusSuccess || result.Visibility != models.VisibilityPublic {
			continue
		}

		content, err := json.Marshal(result.Output)
		if err != nil {
			logger.WarnContext(ctx, "Skipping unencodable output in persistence", "provider", result.Provider, "error", err)

			continue
		}

		turns = append(turns, &models.ConversationTurn{
			ID:        uuid.New().String(),
			Role:      models.RoleAssistant,
			Content:   string(content),
			Timestamp: time.Now().UTC(),
			Tags:      []string{result.Provider, result.Action},
		})
	}

	err := s.publisher.Publish(ctx, conversationID, events.NewTurnsRecorded(conversationID, turns))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish turns for persistence", "error", err)
	}

	stateData := collectStateDeltas(aggregated)

	err = s.publisher.Publish(ctx, conversationID, events.NewExecutionCompleted(
		conversationID,
		aggregated.ExecutionID,
		aggregated.Intent,
		stateData,
		duration,
	))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish execution completion", "error", err)
	}
}

// collectStateDeltas merges the state_delta output fields of successful
// steps, later batches winning on key collisions.
func collectStateDeltas(aggregated *models.AggregatedResult) map[string]any {
	var stateData map[string]any

	for _, result := range aggregated.Results {
		if result.Status != models.StepStatusSuccess || result.Output == nil {
			continue
		}

		delta, ok := result.Output[stateDeltaKey].(map[string]any)
		if !ok {
			continue
		}

		if stateData == nil {
			stateData = make(map[string]any)
		}

		for key, value := range delta {
			stateData[key] = value
		}
	}

	return stateData
}
