package workflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/brainstormhq/conductor/pkg/models"
)

// ErrNotFound is returned when no workflow is registered for an intent.
var ErrNotFound = errors.New("workflow not found")

// Registry is the immutable intent-to-workflow table, built once at startup.
type Registry struct {
	workflows map[string]*models.Workflow
}

// NewRegistry indexes validated workflows by intent.
func NewRegistry(workflows []*models.Workflow) (*Registry, error) {
	indexed := make(map[string]*models.Workflow, len(workflows))

	for _, wf := range workflows {
		if len(wf.Steps) == 0 {
			return nil, fmt.Errorf("workflow %q has no steps", wf.Intent)
		}

		if _, exists := indexed[wf.Intent]; exists {
			return nil, fmt.Errorf("duplicate workflow intent %q", wf.Intent)
		}

		indexed[wf.Intent] = wf
	}

	return &Registry{workflows: indexed}, nil
}

// Resolve returns the workflow for an intent, or ErrNotFound.
func (r *Registry) Resolve(intentID string) (*models.Workflow, error) {
	wf, ok := r.workflows[intentID]
	if !ok {
		return nil, fmt.Errorf("intent %q: %w", intentID, ErrNotFound)
	}

	return wf, nil
}

// Workflows lists all registered workflows sorted by intent.
func (r *Registry) Workflows() []*models.Workflow {
	workflows := make([]*models.Workflow, 0, len(r.workflows))
	for _, wf := range r.workflows {
		workflows = append(workflows, wf)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].Intent < workflows[j].Intent
	})

	return workflows
}
