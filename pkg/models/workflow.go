package models

// Visibility controls whether a step's output is surfaced in the final
// response or kept internal to the coordination flow.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityInternal Visibility = "internal"
)

// WorkflowStep is one unit of work in a workflow: a single action of a named
// capability provider. Steps are defined in static configuration and are
// immutable after load.
//
// Parallel marks a step as eligible to run alongside adjacent parallel steps.
// A run of consecutive parallel steps forms one execution batch; any
// non-parallel step always runs alone.
type WorkflowStep struct {
	Provider   string      `json:"provider"             validate:"required,min=1"`
	Action     string      `json:"action"               validate:"required,min=1"`
	Parallel   bool        `json:"parallel"`
	Conditions []Condition `json:"conditions,omitempty" validate:"dive"`
	Visibility Visibility  `json:"visibility,omitempty" validate:"omitempty,oneof=public internal"`
}

// OutputVisibility returns the declared visibility, defaulting to public.
func (s *WorkflowStep) OutputVisibility() Visibility {
	if s.Visibility == VisibilityInternal {
		return VisibilityInternal
	}

	return VisibilityPublic
}

// Workflow is the ordered step list associated with one classified intent.
// Workflows are loaded once at process start and never mutated.
type Workflow struct {
	Intent      string          `json:"intent"      validate:"required,min=1"`
	Description string          `json:"description"`
	Steps       []*WorkflowStep `json:"steps"       validate:"required,min=1,dive"`
}
