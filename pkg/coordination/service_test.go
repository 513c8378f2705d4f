package coordination

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainstormhq/conductor/pkg/cache"
	"github.com/brainstormhq/conductor/pkg/eventbus"
	"github.com/brainstormhq/conductor/pkg/events"
	"github.com/brainstormhq/conductor/pkg/metrics"
	"github.com/brainstormhq/conductor/pkg/models"
	"github.com/brainstormhq/conductor/pkg/protocol"
	"github.com/brainstormhq/conductor/pkg/pruner"
	"github.com/brainstormhq/conductor/pkg/registry"
	"github.com/brainstormhq/conductor/pkg/scheduler"
	"github.com/brainstormhq/conductor/pkg/statestore/memory"
	"github.com/brainstormhq/conductor/pkg/workflow"
)

type fixedRouter struct {
	intent     string
	confidence int
	err        error
}

func (r fixedRouter) Classify(_ context.Context, _ string, _ *protocol.Snapshot) (*protocol.Classification, error) {
	if r.err != nil {
		return nil, r.err
	}

	return &protocol.Classification{Intent: r.intent, Confidence: r.confidence}, nil
}

type scriptedProvider struct {
	output *protocol.ProviderOutput
	err    error
}

func (p scriptedProvider) Invoke(_ context.Context, _ string, _ *models.ProviderInput) (*protocol.ProviderOutput, error) {
	if p.err != nil {
		return nil, p.err
	}

	return p.output, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return p.err
}

func (p *recordingPublisher) published() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

type failingStore struct{}

func (failingStore) Read(_ context.Context, _ string) (*protocol.Snapshot, error) {
	return nil, errors.New("store offline")
}

func (failingStore) Write(_ context.Context, _ string, _ *protocol.Delta) error {
	return errors.New("store offline")
}

func (failingStore) Close() error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newTestScheduler(t *testing.T, providers map[string]protocol.CapabilityProvider) *scheduler.Scheduler {
	t.Helper()

	logger := testLogger()
	reg := registry.NewRegistry(logger)

	for name, provider := range providers {
		reg.RegisterProvider(name, provider)
	}

	responses := cache.New(16, time.Minute, logger)
	t.Cleanup(responses.Close)

	return scheduler.New(reg, pruner.New(nil), responses, metrics.New(), logger)
}

func decidingWorkflows(t *testing.T) *workflow.Registry {
	t.Helper()

	workflows, err := workflow.NewRegistry([]*models.Workflow{
		{
			Intent: "deciding",
			Steps: []*models.WorkflowStep{
				{Provider: "reflect", Action: "reflect"},
				{Provider: "record", Action: "record", Visibility: models.VisibilityInternal},
			},
		},
	})
	require.NoError(t, err)

	return workflows
}

func TestHandle_MergesPublicSuccessfulOutputsOnly(t *testing.T) {
	providers := map[string]protocol.CapabilityProvider{
		"reflect": scriptedProvider{output: &protocol.ProviderOutput{
			Output: map[string]any{"summary": "looks good"},
		}},
		"record": scriptedProvider{output: &protocol.ProviderOutput{
			Output: map[string]any{"recorded": true},
		}},
	}

	publisher := &recordingPublisher{}
	service := NewService(
		fixedRouter{intent: "deciding", confidence: 80},
		decidingWorkflows(t),
		newTestScheduler(t, providers),
		memory.NewStore(),
		publisher,
		testLogger(),
	)

	response, err := service.Handle(context.Background(), "conv-1", "should we ship?")

	require.NoError(t, err)
	assert.Equal(t, "conv-1", response.ConversationID)
	assert.Equal(t, "deciding", response.Intent)
	assert.Equal(t, 80, response.Confidence)
	assert.NotEmpty(t, response.ExecutionID)

	// The internal record step appears in the summary but not the outputs.
	require.Len(t, response.Outputs, 1)
	assert.Equal(t, "reflect", response.Outputs[0].Provider)
	require.Len(t, response.Steps, 2)
	assert.Equal(t, "record", response.Steps[1].Provider)
}

func TestHandle_UnresolvedIntentIsStructural(t *testing.T) {
	service := NewService(
		fixedRouter{err: errors.New("classifier offline")},
		decidingWorkflows(t),
		newTestScheduler(t, nil),
		memory.NewStore(),
		&recordingPublisher{},
		testLogger(),
	)

	_, err := service.Handle(context.Background(), "conv-1", "hello")

	require.ErrorIs(t, err, ErrIntentUnresolved)
	assert.True(t, IsStructural(err))
}

func TestHandle_UnknownIntentIsStructural(t *testing.T) {
	service := NewService(
		fixedRouter{intent: "negotiating", confidence: 90},
		decidingWorkflows(t),
		newTestScheduler(t, nil),
		memory.NewStore(),
		&recordingPublisher{},
		testLogger(),
	)

	_, err := service.Handle(context.Background(), "conv-1", "hello")

	require.ErrorIs(t, err, ErrUnknownIntent)
	assert.True(t, IsStructural(err))
}

func TestHandle_ProviderFailureIsNotStructural(t *testing.T) {
	providers := map[string]protocol.CapabilityProvider{
		"reflect": scriptedProvider{err: errors.New("model offline")},
		"record":  scriptedProvider{output: &protocol.ProviderOutput{Output: map[string]any{}}},
	}

	service := NewService(
		fixedRouter{intent: "deciding", confidence: 80},
		decidingWorkflows(t),
		newTestScheduler(t, providers),
		memory.NewStore(),
		&recordingPublisher{},
		testLogger(),
	)

	response, err := service.Handle(context.Background(), "conv-1", "should we ship?")

	require.NoError(t, err)
	assert.Empty(t, response.Outputs)
	require.Len(t, response.Steps, 2)
	assert.Equal(t, models.StepStatusFailed, response.Steps[0].Status)
	assert.Contains(t, response.Steps[0].Error, "model offline")
}

func TestHandle_StoreReadFailureDegradesToEmptyContext(t *testing.T) {
	providers := map[string]protocol.CapabilityProvider{
		"reflect": scriptedProvider{output: &protocol.ProviderOutput{Output: map[string]any{"summary": "ok"}}},
		"record":  scriptedProvider{output: &protocol.ProviderOutput{Output: map[string]any{}}},
	}

	service := NewService(
		fixedRouter{intent: "deciding", confidence: 80},
		decidingWorkflows(t),
		newTestScheduler(t, providers),
		failingStore{},
		&recordingPublisher{},
		testLogger(),
	)

	response, err := service.Handle(context.Background(), "conv-1", "should we ship?")

	require.NoError(t, err)
	assert.Len(t, response.Outputs, 1)
}

func TestHandle_PublishFailureIsNotSurfaced(t *testing.T) {
	providers := map[string]protocol.CapabilityProvider{
		"reflect": scriptedProvider{output: &protocol.ProviderOutput{Output: map[string]any{"summary": "ok"}}},
		"record":  scriptedProvider{output: &protocol.ProviderOutput{Output: map[string]any{}}},
	}

	service := NewService(
		fixedRouter{intent: "deciding", confidence: 80},
		decidingWorkflows(t),
		newTestScheduler(t, providers),
		memory.NewStore(),
		&recordingPublisher{err: errors.New("broker down")},
		testLogger(),
	)

	_, err := service.Handle(context.Background(), "conv-1", "should we ship?")

	require.NoError(t, err)
}

func TestHandle_PersistsTurnsAndStateDeltas(t *testing.T) {
	providers := map[string]protocol.CapabilityProvider{
		"reflect": scriptedProvider{output: &protocol.ProviderOutput{
			Output: map[string]any{
				"summary":     "looks good",
				"state_delta": map[string]any{"phase": "decided"},
			},
		}},
		"record": scriptedProvider{output: &protocol.ProviderOutput{Output: map[string]any{}}},
	}

	publisher := &recordingPublisher{}
	service := NewService(
		fixedRouter{intent: "deciding", confidence: 80},
		decidingWorkflows(t),
		newTestScheduler(t, providers),
		memory.NewStore(),
		publisher,
		testLogger(),
	)

	_, err := service.Handle(context.Background(), "conv-1", "should we ship?")
	require.NoError(t, err)

	published := publisher.published()
	require.Len(t, published, 2)

	turns, ok := published[0].(events.TurnsRecorded)
	require.True(t, ok)
	// The triggering user turn plus one assistant turn for the public output.
	require.Len(t, turns.Turns, 2)
	assert.Equal(t, models.RoleUser, turns.Turns[0].Role)
	assert.Equal(t, models.RoleAssistant, turns.Turns[1].Role)
	assert.Equal(t, []string{"reflect", "reflect"}, turns.Turns[1].Tags)

	completed, ok := published[1].(events.ExecutionCompleted)
	require.True(t, ok)
	assert.Equal(t, "deciding", completed.Intent)
	assert.Equal(t, "decided", completed.StateData["phase"])
}
