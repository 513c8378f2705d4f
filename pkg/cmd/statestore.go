package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/brainstormhq/conductor/pkg/protocol"
	"github.com/brainstormhq/conductor/pkg/statestore/memory"
	"github.com/brainstormhq/conductor/pkg/statestore/redis"
)

// NewStateStore builds a state store from a URL: memory:// for local
// development and tests, redis://[password@]host:port[/db] for production.
func NewStateStore(ctx context.Context, logger *slog.Logger, storeURL string) (protocol.StateStore, error) {
	provider, rest, found := strings.Cut(storeURL, "://")
	if !found {
		return nil, fmt.Errorf("invalid state store URL %q", storeURL)
	}

	switch provider {
	case "memory":
		return memory.NewStore(), nil
	case "redis":
		opts, err := parseRedisOptions(rest)
		if err != nil {
			return nil, err
		}

		return redis.NewStore(ctx, opts, logger)
	default:
		return nil, fmt.Errorf("unsupported state store provider: %s", provider)
	}
}

func parseRedisOptions(rest string) (*goredis.Options, error) {
	opts := &goredis.Options{}

	if password, addr, found := strings.Cut(rest, "@"); found {
		opts.Password = password
		rest = addr
	}

	addr, dbPart, found := strings.Cut(rest, "/")
	if addr == "" {
		addr = "localhost:6379"
	}

	opts.Addr = addr

	if found && dbPart != "" {
		db, err := strconv.Atoi(dbPart)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q: %w", dbPart, err)
		}

		opts.DB = db
	}

	return opts, nil
}
