// Package models provides condition evaluation for workflow steps.
package models

import (
	"fmt"
	"strings"
)

// ConditionKind enumerates the supported step predicates. Conditions are
// evaluated against the AggregatedResult accumulated from prior batches;
// multiple conditions on one step are combined with AND.
type ConditionKind string

const (
	// ConditionAlways evaluates to true unconditionally.
	ConditionAlways ConditionKind = "always"
	// ConditionStepSucceeded is true when the named provider has a
	// successful result in a prior batch.
	ConditionStepSucceeded ConditionKind = "step-succeeded"
	// ConditionStepFailed is true when the named provider has a failed
	// result in a prior batch.
	ConditionStepFailed ConditionKind = "step-failed"
	// ConditionOutputContains is true when the named provider's output
	// field holds a string containing the given substring.
	ConditionOutputContains ConditionKind = "output-contains"
	// ConditionMinConfidence is true when the intent classification
	// confidence is at least Threshold.
	ConditionMinConfidence ConditionKind = "min-confidence"
)

// Condition is a single enumerated predicate on a workflow step.
type Condition struct {
	Kind      ConditionKind `json:"kind"                validate:"required,oneof=always step-succeeded step-failed output-contains min-confidence"`
	Provider  string        `json:"provider,omitempty"`
	Field     string        `json:"field,omitempty"`
	Substring string        `json:"substring,omitempty"`
	Threshold int           `json:"threshold,omitempty" validate:"min=0,max=100"`
}

// Evaluate resolves the condition against the accumulated result and the
// classification confidence of the current request.
func (c Condition) Evaluate(agg *AggregatedResult, confidence int) (bool, error) {
	switch c.Kind {
	case ConditionAlways:
		return true, nil
	case ConditionStepSucceeded:
		return agg.Succeeded(c.Provider), nil
	case ConditionStepFailed:
		result, ok := agg.ResultFor(c.Provider)

		return ok && result.Status == StepStatusFailed, nil
	case ConditionOutputContains:
		result, ok := agg.ResultFor(c.Provider)
		if !ok || result.Output == nil {
			return false, nil
		}

		value, ok := result.Output[c.Field].(string)

		return ok && strings.Contains(value, c.Substring), nil
	case ConditionMinConfidence:
		return confidence >= c.Threshold, nil
	default:
		return false, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

// EvaluateConditions combines a step's conditions with AND. An empty list
// always evaluates to true.
func EvaluateConditions(conditions []Condition, agg *AggregatedResult, confidence int) (bool, error) {
	for _, condition := range conditions {
		ok, err := condition.Evaluate(agg, confidence)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}
