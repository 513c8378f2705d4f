// Package redis provides the production state store backed by Redis.
// Conversation history lives in a list, project state in a hash whose
// revision field is bumped on every state mutation.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/brainstormhq/conductor/pkg/models"
	"github.com/brainstormhq/conductor/pkg/protocol"
)

const (
	historyKeyPrefix = "conductor:history:"
	stateKeyPrefix   = "conductor:state:"

	stateRevisionField = "revision"
	stateDataField     = "data"

	connectTimeout = 5 * time.Second
)

type Store struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, opts *redis.Options, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return &Store{
		client: client,
		logger: logger.With("module", "redis_state_store"),
	}, nil
}

// Read fetches history and project state concurrently; neither depends on
// the other at this stage.
func (s *Store) Read(ctx context.Context, conversationID string) (*protocol.Snapshot, error) {
	var (
		history []*models.ConversationTurn
		state   *models.ProjectState
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		history, err = s.readHistory(groupCtx, conversationID)

		return err
	})

	group.Go(func() error {
		var err error
		state, err = s.readState(groupCtx, conversationID)

		return err
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return &protocol.Snapshot{History: history, State: state}, nil
}

func (s *Store) readHistory(ctx context.Context, conversationID string) ([]*models.ConversationTurn, error) {
	raw, err := s.client.LRange(ctx, historyKeyPrefix+conversationID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	history := make([]*models.ConversationTurn, 0, len(raw))

	for _, item := range raw {
		var turn models.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			s.logger.WarnContext(ctx, "Skipping undecodable history entry",
				"conversation_id", conversationID,
				"error", err,
			)

			continue
		}

		history = append(history, &turn)
	}

	return history, nil
}

func (s *Store) readState(ctx context.Context, conversationID string) (*models.ProjectState, error) {
	fields, err := s.client.HGetAll(ctx, stateKeyPrefix+conversationID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read project state: %w", err)
	}

	state := &models.ProjectState{ConversationID: conversationID}

	if revision, ok := fields[stateRevisionField]; ok {
		fmt.Sscanf(revision, "%d", &state.Revision)
	}

	if data, ok := fields[stateDataField]; ok && data != "" {
		if err := json.Unmarshal([]byte(data), &state.Data); err != nil {
			return nil, fmt.Errorf("failed to decode project state data: %w", err)
		}
	}

	return state, nil
}

// Write appends turns and merges state data. Any state mutation bumps the
// revision, which changes the state fingerprint and implicitly invalidates
// cached provider results.
func (s *Store) Write(ctx context.Context, conversationID string, delta *protocol.Delta) error {
	if len(delta.Turns) > 0 {
		payloads := make([]interface{}, 0, len(delta.Turns))

		for _, turn := range delta.Turns {
			payload, err := json.Marshal(turn)
			if err != nil {
				return fmt.Errorf("failed to encode turn: %w", err)
			}

			payloads = append(payloads, payload)
		}

		if err := s.client.RPush(ctx, historyKeyPrefix+conversationID, payloads...).Err(); err != nil {
			return fmt.Errorf("failed to append turns: %w", err)
		}
	}

	if len(delta.StateData) > 0 {
		if err := s.mergeState(ctx, conversationID, delta.StateData); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) mergeState(ctx context.Context, conversationID string, stateData map[string]any) error {
	stateKey := stateKeyPrefix + conversationID

	current, err := s.readState(ctx, conversationID)
	if err != nil {
		return err
	}

	if current.Data == nil {
		current.Data = make(map[string]any)
	}

	for key, value := range stateData {
		current.Data[key] = value
	}

	data, err := json.Marshal(current.Data)
	if err != nil {
		return fmt.Errorf("failed to encode project state data: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, stateKey, stateDataField, data)
	pipe.HIncrBy(ctx, stateKey, stateRevisionField, 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write project state: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
