// Package scheduler executes workflows as ordered batches of capability
// provider calls.
//
// The step list is partitioned into maximal contiguous batches: a run of
// consecutive steps flagged parallel becomes one batch, any other step forms
// a singleton batch. Batches run in strict order behind a barrier, so batch
// N always observes the fully merged outputs of batches 1..N-1. Within a
// batch there is no ordering and no visibility between siblings, and a
// failing sibling never cancels the others.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brainstormhq/conductor/pkg/cache"
	"github.com/brainstormhq/conductor/pkg/metrics"
	"github.com/brainstormhq/conductor/pkg/models"
	"github.com/brainstormhq/conductor/pkg/otelhelper"
	"github.com/brainstormhq/conductor/pkg/pruner"
	"github.com/brainstormhq/conductor/pkg/protocol"
)

// DefaultCallTimeout bounds a single provider invocation. A timed-out call
// is treated identically to a provider failure.
const DefaultCallTimeout = 60 * time.Second

var (
	// ErrNilWorkflow is returned when Execute is handed no workflow.
	ErrNilWorkflow = errors.New("workflow is nil")
	// ErrNoSteps is returned for a workflow with an empty step list.
	ErrNoSteps = errors.New("workflow has no steps")
)

// ProviderLookup resolves a registered capability provider by name. An
// unresolvable name is a structural error and aborts the execution.
type ProviderLookup interface {
	Provider(name string) (protocol.CapabilityProvider, error)
}

// Request carries the per-request inputs of one workflow execution.
type Request struct {
	ConversationID string
	ExecutionID    string
	Turn           *models.ConversationTurn
	History        []*models.ConversationTurn
	State          *models.ProjectState
	StateHash      string
	Confidence     int
}

type Scheduler struct {
	providers ProviderLookup
	pruner    *pruner.Pruner
	responses *cache.Cache
	usage     *metrics.Metrics

	ttls        map[string]time.Duration
	callTimeout time.Duration
	tracer      trace.Tracer
	logger      *slog.Logger
}

type Option func(*Scheduler)

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		s.callTimeout = timeout
	}
}

// WithTTLs sets the per-provider cache TTLs. A zero TTL means the provider's
// output is never cached.
func WithTTLs(ttls map[string]time.Duration) Option {
	return func(s *Scheduler) {
		s.ttls = ttls
	}
}

// WithTracer enables span emission around executions and provider calls.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scheduler) {
		s.tracer = tracer
	}
}

func New(
	providers ProviderLookup,
	prune *pruner.Pruner,
	responses *cache.Cache,
	usage *metrics.Metrics,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	scheduler := &Scheduler{
		providers:   providers,
		pruner:      prune,
		responses:   responses,
		usage:       usage,
		ttls:        make(map[string]time.Duration),
		callTimeout: DefaultCallTimeout,
		logger:      logger.With("module", "scheduler"),
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	return scheduler
}

// Partition splits the ordered step list into execution batches: maximal
// runs of consecutive parallel steps, with every non-parallel step as its
// own singleton batch.
func Partition(steps []*models.WorkflowStep) [][]*models.WorkflowStep {
	batches := make([][]*models.WorkflowStep, 0, len(steps))

	var run []*models.WorkflowStep

	for _, step := range steps {
		if step.Parallel {
			run = append(run, step)

			continue
		}

		if len(run) > 0 {
			batches = append(batches, run)
			run = nil
		}

		batches = append(batches, []*models.WorkflowStep{step})
	}

	if len(run) > 0 {
		batches = append(batches, run)
	}

	return batches
}

// Execute runs the workflow against the request and returns every step's
// outcome in definition order. Provider failures are captured as failed
// results; only structural problems return an error.
func (s *Scheduler) Execute(ctx context.Context, workflow *models.Workflow, req *Request) (*models.AggregatedResult, error) {
	if workflow == nil {
		return nil, ErrNilWorkflow
	}

	if len(workflow.Steps) == 0 {
		return nil, fmt.Errorf("workflow %s: %w", workflow.Intent, ErrNoSteps)
	}

	logger := s.logger.With(
		"intent", workflow.Intent,
		"execution_id", req.ExecutionID,
		"conversation_id", req.ConversationID,
	)

	if s.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, s.tracer, "scheduler.execute",
			attribute.String(otelhelper.IntentKey, workflow.Intent),
			attribute.String(otelhelper.ExecutionIDKey, req.ExecutionID),
			attribute.String(otelhelper.ConversationIDKey, req.ConversationID),
		)
		defer span.End()
	}

	aggregated := &models.AggregatedResult{
		ExecutionID: req.ExecutionID,
		Intent:      workflow.Intent,
		Results:     make([]*models.ProviderCallResult, 0, len(workflow.Steps)),
	}

	batches := Partition(workflow.Steps)
	logger.Info("Starting workflow execution", "steps", len(workflow.Steps), "batches", len(batches))

	for index, batch := range batches {
		results, err := s.executeBatch(ctx, batch, aggregated, req)
		if err != nil {
			return nil, fmt.Errorf("batch %d of workflow %s: %w", index, workflow.Intent, err)
		}

		// Barrier: merge before the next batch begins.
		aggregated.Results = append(aggregated.Results, results...)

		logger.Debug("Batch settled", "batch", index, "size", len(batch))
	}

	logger.Info("Workflow execution completed", "results", len(aggregated.Results))

	return aggregated, nil
}

// executeBatch settles every step of one batch. Steps only observe the
// aggregated results of prior batches, snapshotted before any sibling runs.
func (s *Scheduler) executeBatch(
	ctx context.Context,
	batch []*models.WorkflowStep,
	aggregated *models.AggregatedResult,
	req *Request,
) ([]*models.ProviderCallResult, error) {
	prior := make([]*models.ProviderCallResult, len(aggregated.Results))
	copy(prior, aggregated.Results)

	results := make([]*models.ProviderCallResult, len(batch))

	type pending struct {
		index    int
		step     *models.WorkflowStep
		provider protocol.CapabilityProvider
	}

	runnable := make([]pending, 0, len(batch))

	for index, step := range batch {
		shouldRun, err := models.EvaluateConditions(step.Conditions, aggregated, req.Confidence)
		if err != nil {
			return nil, fmt.Errorf("step %s/%s condition: %w", step.Provider, step.Action, err)
		}

		if !shouldRun {
			results[index] = &models.ProviderCallResult{
				Provider:   step.Provider,
				Action:     step.Action,
				Status:     models.StepStatusSkipped,
				Visibility: models.VisibilityInternal,
			}

			continue
		}

		provider, err := s.providers.Provider(step.Provider)
		if err != nil {
			return nil, err
		}

		runnable = append(runnable, pending{index: index, step: step, provider: provider})
	}

	if len(runnable) == 1 {
		only := runnable[0]
		results[only.index] = s.runStep(ctx, only.step, only.provider, prior, req)

		return results, nil
	}

	var wg sync.WaitGroup

	for _, item := range runnable {
		wg.Add(1)

		go func(item pending) {
			defer wg.Done()

			results[item.index] = s.runStep(ctx, item.step, item.provider, prior, req)
		}(item)
	}

	wg.Wait()

	return results, nil
}

// runStep performs one provider call: prune, cache lookup, invoke on a miss,
// store, account. Any error or panic from the provider is converted to a
// failed result.
func (s *Scheduler) runStep(
	ctx context.Context,
	step *models.WorkflowStep,
	provider protocol.CapabilityProvider,
	prior []*models.ProviderCallResult,
	req *Request,
) *models.ProviderCallResult {
	logger := s.logger.With(
		"provider", step.Provider,
		"action", step.Action,
		"execution_id", req.ExecutionID,
	)

	if s.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, s.tracer, "scheduler.step",
			attribute.String(otelhelper.ProviderKey, step.Provider),
			attribute.String(otelhelper.ActionKey, step.Action),
		)
		defer span.End()
	}

	input := &models.ProviderInput{
		ConversationID: req.ConversationID,
		Turn:           req.Turn,
		History:        s.pruner.Prune(step.Provider, req.History),
		State:          req.State,
		Prior:          prior,
	}

	start := time.Now()

	if output, ok := s.responses.Get(step.Provider, input, req.StateHash); ok {
		latency := time.Since(start)

		s.usage.RecordCall(step.Provider, metrics.CallRecord{
			CacheHit:        true,
			EstimatedTokens: output.EstimatedTokens,
			Latency:         latency,
		})

		logger.Debug("Cache hit, skipping provider invocation")

		return &models.ProviderCallResult{
			Provider:        step.Provider,
			Action:          step.Action,
			Status:          models.StepStatusSuccess,
			Output:          output.Output,
			Visibility:      effectiveVisibility(step, output),
			FromCache:       true,
			Latency:         latency,
			EstimatedTokens: output.EstimatedTokens,
		}
	}

	output, err := s.invoke(ctx, provider, step.Action, input)
	latency := time.Since(start)

	if err != nil {
		s.usage.RecordCall(step.Provider, metrics.CallRecord{
			Failed:  true,
			Latency: latency,
		})

		logger.Warn("Provider call failed", "error", err, "latency", latency)

		return &models.ProviderCallResult{
			Provider:   step.Provider,
			Action:     step.Action,
			Status:     models.StepStatusFailed,
			Visibility: models.VisibilityInternal,
			Error:      err.Error(),
			Latency:    latency,
		}
	}

	s.responses.Put(step.Provider, input, req.StateHash, output, s.ttls[step.Provider])

	s.usage.RecordCall(step.Provider, metrics.CallRecord{
		EstimatedTokens: output.EstimatedTokens,
		Latency:         latency,
	})

	return &models.ProviderCallResult{
		Provider:        step.Provider,
		Action:          step.Action,
		Status:          models.StepStatusSuccess,
		Output:          output.Output,
		Visibility:      effectiveVisibility(step, output),
		Latency:         latency,
		EstimatedTokens: output.EstimatedTokens,
	}
}

// invoke calls the provider with a per-call timeout, recovering panics as
// errors. The call context is detached from request cancellation: an
// abandoned request does not abort in-flight calls, and their results are
// still cached for future reuse.
func (s *Scheduler) invoke(
	ctx context.Context,
	provider protocol.CapabilityProvider,
	action string,
	input *models.ProviderInput,
) (output *protocol.ProviderOutput, err error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.callTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()

	output, err = provider.Invoke(callCtx, action, input)
	if err != nil {
		return nil, err
	}

	if output == nil {
		return nil, errors.New("provider returned no output")
	}

	return output, nil
}

// effectiveVisibility resolves step-declared visibility against the
// provider's own declaration; internal wins.
func effectiveVisibility(step *models.WorkflowStep, output *protocol.ProviderOutput) models.Visibility {
	if step.OutputVisibility() == models.VisibilityInternal || output.Visibility == models.VisibilityInternal {
		return models.VisibilityInternal
	}

	return models.VisibilityPublic
}
