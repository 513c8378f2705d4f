// Package web provides the HTTP surface of the coordination engine.
package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/brainstormhq/conductor/pkg/coordination"
	"github.com/brainstormhq/conductor/pkg/metrics"
	"github.com/brainstormhq/conductor/pkg/workflow"
)

type APIHandlers struct {
	coordinator *coordination.Service
	workflows   *workflow.Registry
	usage       *metrics.Metrics
	validator   *validator.Validate
}

func NewAPIHandlers(
	coordinator *coordination.Service,
	workflows *workflow.Registry,
	usage *metrics.Metrics,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		coordinator: coordinator,
		workflows:   workflows,
		usage:       usage,
		validator:   validate,
	}
}

// PostMessageRequest is the body of POST /conversations/:id/messages.
type PostMessageRequest struct {
	Message string `json:"message" validate:"required,min=1"`
}

// PostMessage routes one raw input through the coordination engine and
// returns the merged final response.
func (h *APIHandlers) PostMessage(c fiber.Ctx) error {
	conversationID := c.Params("id")
	if conversationID == "" {
		return badRequest(c, "conversation id is required")
	}

	var req PostMessageRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	response, err := h.coordinator.Handle(c.Context(), conversationID, req.Message)
	if err != nil {
		return handleCoordinationError(c, err)
	}

	return c.JSON(response)
}

// GetMetrics exposes the resource metrics snapshot for external polling.
func (h *APIHandlers) GetMetrics(c fiber.Ctx) error {
	return c.JSON(h.usage.Snapshot())
}

// ResetMetrics clears the counters and restarts the accounting window.
func (h *APIHandlers) ResetMetrics(c fiber.Ctx) error {
	h.usage.Reset()

	return c.SendStatus(fiber.StatusNoContent)
}

// GetWorkflows lists the registered workflows.
func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"workflows": h.workflows.Workflows(),
	})
}
