// conductor-send runs a single coordination flow against a configuration
// file and prints the merged response. It uses the in-memory state store and
// in-process event bus, so it is suitable for trying out workflow configs
// without any infrastructure.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/brainstormhq/conductor/pkg/cmd"
	"github.com/brainstormhq/conductor/pkg/log"
)

func main() {
	logger := log.WithModule("conductor-send")

	command := &cli.Command{
		Name:                  "conductor-send",
		Usage:                 "Send one message through a workflow configuration",
		ArgsUsage:             "<message>",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the workflow configuration file",
				Required: true,
				Sources:  cli.EnvVars("CONDUCTOR_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "conversation",
				Usage:   "Conversation ID to send the message to",
				Value:   "local",
				Sources: cli.EnvVars("CONVERSATION_ID"),
			},
			&cli.DurationFlag{
				Name:  "call-timeout",
				Usage: "Per-provider call timeout",
				Value: 60 * time.Second,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			message := command.Args().First()
			if message == "" {
				return fmt.Errorf("message argument is required")
			}

			engine, err := cmd.NewEngine(ctx, logger, cmd.EngineOptions{
				ConfigPath:    command.String("config"),
				StateStoreURL: "memory://",
				EventBus:      "gochannel",
				CallTimeout:   command.Duration("call-timeout"),
			})
			if err != nil {
				return err
			}

			defer engine.Close(ctx)

			response, err := engine.Coordinator.Handle(ctx, command.String("conversation"), message)
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(response, "", "  ")
			if err != nil {
				return err
			}

			fmt.Println(string(encoded))

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
