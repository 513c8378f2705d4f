package web

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/brainstormhq/conductor/pkg/coordination"
	"github.com/brainstormhq/conductor/pkg/metrics"
	"github.com/brainstormhq/conductor/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	coordinator *coordination.Service
	workflows   *workflow.Registry
	usage       *metrics.Metrics
	validate    *validator.Validate
}

func NewAPI(
	log *slog.Logger,
	coordinator *coordination.Service,
	workflows *workflow.Registry,
	usage *metrics.Metrics,
) *API {
	return &API{
		logger:      log,
		coordinator: coordinator,
		workflows:   workflows,
		usage:       usage,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := NewAPIHandlers(a.coordinator, a.workflows, a.usage, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Conductor API")
	})

	app.Post("/conversations/:id/messages", handlers.PostMessage)
	app.Get("/workflows", handlers.GetWorkflows)
	app.Get("/metrics", handlers.GetMetrics)
	app.Delete("/metrics", handlers.ResetMetrics)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
