package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/codeassess/sessiond/internal/config"
	"github.com/codeassess/sessiond/internal/model"
)

// workspaceTTL bounds how long abandoned drafts linger in Redis.
const workspaceTTL = 24 * time.Hour

// RedisWorkspaceStore keeps drafts in a Redis hash per attempt, so a
// daemon restart mid-exam does not lose the student's unsaved work.
type RedisWorkspaceStore struct {
	client *redis.Client
}

// NewRedisWorkspaceStore creates a Redis-backed store.
func NewRedisWorkspaceStore(client *redis.Client) *RedisWorkspaceStore {
	return &RedisWorkspaceStore{client: client}
}

func (s *RedisWorkspaceStore) Get(ctx context.Context, attemptID, questionID uuid.UUID) (*model.WorkspaceState, error) {
	key := config.CacheKey.AttemptWorkspaceKey(attemptID.String())
	raw, err := s.client.HGet(ctx, key, questionID.String()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("workspace get: %w", err)
	}
	var ws model.WorkspaceState
	if err := json.Unmarshal([]byte(raw), &ws); err != nil {
		return nil, fmt.Errorf("workspace decode: %w", err)
	}
	return &ws, nil
}

func (s *RedisWorkspaceStore) Put(ctx context.Context, attemptID, questionID uuid.UUID, ws *model.WorkspaceState) error {
	raw, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("workspace encode: %w", err)
	}
	key := config.CacheKey.AttemptWorkspaceKey(attemptID.String())
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, questionID.String(), raw)
	pipe.Expire(ctx, key, workspaceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("workspace put: %w", err)
	}
	return nil
}

func (s *RedisWorkspaceStore) Clear(ctx context.Context, attemptID uuid.UUID) error {
	key := config.CacheKey.AttemptWorkspaceKey(attemptID.String())
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("workspace clear: %w", err)
	}
	return nil
}
