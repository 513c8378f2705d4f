package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/brainstormhq/conductor/pkg/cmd"
	"github.com/brainstormhq/conductor/pkg/log"
	"github.com/brainstormhq/conductor/pkg/otelhelper"
	"github.com/brainstormhq/conductor/pkg/web"
)

const defaultPort = 9080

func main() {
	logger := log.WithModule("conductor")

	command := &cli.Command{
		Name:                  "conductor",
		Usage:                 "Coordination engine for multi-provider brainstorm workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the workflow configuration file",
				Required: true,
				Sources:  cli.EnvVars("CONDUCTOR_CONFIG"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "state-store",
				Usage:   "State store URL (memory:// or redis://[password@]host:port[/db])",
				Value:   "memory://",
				Sources: cli.EnvVars("STATE_STORE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.DurationFlag{
				Name:    "call-timeout",
				Usage:   "Per-provider call timeout",
				Value:   60 * time.Second,
				Sources: cli.EnvVars("CALL_TIMEOUT"),
			},
			&cli.IntFlag{
				Name:    "cache-capacity",
				Usage:   "Maximum number of cached provider responses",
				Value:   1024,
				Sources: cli.EnvVars("CACHE_CAPACITY"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Conductor")

			var tracer trace.Tracer

			if command.Bool("tracing") {
				var err error

				tracer, err = otelhelper.NewTracer(ctx, "conductor")
				if err != nil {
					return err
				}
			}

			engine, err := cmd.NewEngine(ctx, logger, cmd.EngineOptions{
				ConfigPath:    command.String("config"),
				StateStoreURL: command.String("state-store"),
				EventBus:      command.String("event-bus"),
				CallTimeout:   command.Duration("call-timeout"),
				CacheCapacity: command.Int("cache-capacity"),
				Tracer:        tracer,
			})
			if err != nil {
				return err
			}

			defer engine.Close(ctx)

			api := web.NewAPI(logger, engine.Coordinator, engine.Workflows, engine.Metrics)

			return api.Start(command.Int("port"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
