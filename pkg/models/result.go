package models

import "time"

// StepStatus is the terminal outcome of a single workflow step.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// ProviderCallResult is the outcome of one step invocation. Failed provider
// calls are captured here rather than propagated; only structural problems
// abort an execution.
type ProviderCallResult struct {
	Provider        string         `json:"provider"`
	Action          string         `json:"action"`
	Status          StepStatus     `json:"status"`
	Output          map[string]any `json:"output,omitempty"`
	Visibility      Visibility     `json:"visibility"`
	Error           string         `json:"error,omitempty"`
	FromCache       bool           `json:"from_cache"`
	Latency         time.Duration  `json:"latency_ms"`
	EstimatedTokens int            `json:"estimated_tokens"`
}

// AggregatedResult accumulates step outcomes across batches, in workflow
// definition order. Steps of batch N only ever observe results of batches
// 1..N-1 through Prior snapshots taken at the batch barrier.
type AggregatedResult struct {
	ExecutionID string                `json:"execution_id"`
	Intent      string                `json:"intent"`
	Results     []*ProviderCallResult `json:"results"`
}

// ResultFor returns the most recent result recorded for the named provider.
func (a *AggregatedResult) ResultFor(provider string) (*ProviderCallResult, bool) {
	for i := len(a.Results) - 1; i >= 0; i-- {
		if a.Results[i].Provider == provider {
			return a.Results[i], true
		}
	}

	return nil, false
}

// Succeeded reports whether the named provider has a successful result.
func (a *AggregatedResult) Succeeded(provider string) bool {
	result, ok := a.ResultFor(provider)

	return ok && result.Status == StepStatusSuccess
}

// StepSummary is the per-step digest included in a final response for every
// step, public or internal.
type StepSummary struct {
	Provider  string     `json:"provider"`
	Action    string     `json:"action"`
	Status    StepStatus `json:"status"`
	FromCache bool       `json:"from_cache"`
	Error     string     `json:"error,omitempty"`
}

// FinalResponse is the merged, user-facing outcome of a coordination flow.
// Outputs carries only public, successful step outputs; Steps summarizes
// every step including skipped and failed ones.
type FinalResponse struct {
	ConversationID string                `json:"conversation_id"`
	ExecutionID    string                `json:"execution_id"`
	Intent         string                `json:"intent"`
	Confidence     int                   `json:"confidence"`
	Outputs        []*ProviderCallResult `json:"outputs"`
	Steps          []StepSummary         `json:"steps"`
}
