package cmd

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/brainstormhq/conductor/pkg/cache"
	"github.com/brainstormhq/conductor/pkg/coordination"
	"github.com/brainstormhq/conductor/pkg/eventbus"
	"github.com/brainstormhq/conductor/pkg/intent"
	"github.com/brainstormhq/conductor/pkg/metrics"
	"github.com/brainstormhq/conductor/pkg/pruner"
	"github.com/brainstormhq/conductor/pkg/protocol"
	"github.com/brainstormhq/conductor/pkg/registry"
	"github.com/brainstormhq/conductor/pkg/scheduler"
	"github.com/brainstormhq/conductor/pkg/workflow"
)

// EngineOptions selects the wiring of one engine instance.
type EngineOptions struct {
	ConfigPath    string
	StateStoreURL string
	EventBus      string
	CallTimeout   time.Duration
	CacheCapacity int
	CacheSweep    time.Duration
	Tracer        trace.Tracer
}

// Engine is the fully wired coordination engine: every shared resource is
// constructed once here and passed by handle, never through a singleton.
type Engine struct {
	Config      *workflow.Config
	Registry    *registry.Registry
	Workflows   *workflow.Registry
	Cache       *cache.Cache
	Metrics     *metrics.Metrics
	Scheduler   *scheduler.Scheduler
	Coordinator *coordination.Service
	Store       protocol.StateStore
	Bus         eventbus.EventBus

	logger *slog.Logger
}

// NewEngine loads configuration and assembles the engine, starting the
// background persistence worker.
func NewEngine(ctx context.Context, logger *slog.Logger, opts EngineOptions) (*Engine, error) {
	config, err := workflow.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	reg, err := NewRegistry(logger, config)
	if err != nil {
		return nil, err
	}

	workflows, err := workflow.NewRegistry(config.Workflows)
	if err != nil {
		return nil, err
	}

	store, err := NewStateStore(ctx, logger, opts.StateStoreURL)
	if err != nil {
		return nil, err
	}

	bus, err := NewEventBus(opts.EventBus, logger)
	if err != nil {
		return nil, err
	}

	responseCache := cache.New(opts.CacheCapacity, opts.CacheSweep, logger)
	usage := metrics.New()

	schedulerOpts := []scheduler.Option{
		scheduler.WithTTLs(config.TTLs()),
	}

	if opts.CallTimeout > 0 {
		schedulerOpts = append(schedulerOpts, scheduler.WithCallTimeout(opts.CallTimeout))
	}

	if opts.Tracer != nil {
		schedulerOpts = append(schedulerOpts, scheduler.WithTracer(opts.Tracer))
	}

	sched := scheduler.New(
		reg,
		pruner.New(config.PruningRules()),
		responseCache,
		usage,
		logger,
		schedulerOpts...,
	)

	router, err := newRouter(config, reg)
	if err != nil {
		return nil, err
	}

	coordinationOpts := []coordination.Option{}
	if opts.Tracer != nil {
		coordinationOpts = append(coordinationOpts, coordination.WithTracer(opts.Tracer))
	}

	coordinator := coordination.NewService(router, workflows, sched, store, bus, logger, coordinationOpts...)

	worker := eventbus.NewPersistenceWorker(bus, store, logger)
	if err := worker.Start(ctx); err != nil {
		return nil, err
	}

	return &Engine{
		Config:      config,
		Registry:    reg,
		Workflows:   workflows,
		Cache:       responseCache,
		Metrics:     usage,
		Scheduler:   sched,
		Coordinator: coordinator,
		Store:       store,
		Bus:         bus,
		logger:      logger,
	}, nil
}

// newRouter picks the configured classifier provider, falling back to the
// keyword router over the configured rules.
func newRouter(config *workflow.Config, reg *registry.Registry) (protocol.IntentRouter, error) {
	if config.Router != nil && config.Router.Provider != "" {
		provider, err := reg.Provider(config.Router.Provider)
		if err != nil {
			return nil, err
		}

		return intent.NewProviderRouter(provider), nil
	}

	var (
		rules         []intent.KeywordRule
		defaultIntent string
	)

	if config.Router != nil {
		rules = config.Router.Keywords
		defaultIntent = config.Router.DefaultIntent
	}

	if defaultIntent == "" && len(config.Workflows) > 0 {
		defaultIntent = config.Workflows[0].Intent
	}

	return intent.NewKeywordRouter(rules, defaultIntent), nil
}

// Close releases the engine's shared resources.
func (e *Engine) Close(ctx context.Context) {
	e.Cache.Close()

	if err := e.Bus.Close(); err != nil {
		e.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	if err := e.Store.Close(); err != nil {
		e.logger.ErrorContext(ctx, "Failed to close state store", "error", err)
	}
}
