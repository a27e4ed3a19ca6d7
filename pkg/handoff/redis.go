package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/readmit-ai/hrp/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "hrp:handoff:"

// RedisStore shares handoffs across replicas. GETDEL keeps Take one-shot.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, record models.IntakeRecord) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal handoff: %w", err)
	}
	id := uuid.New().String()
	if err := s.client.Set(ctx, redisKeyPrefix+id, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store handoff: %w", err)
	}
	logger.Log.WithFields(map[string]interface{}{
		"handoff_id": id,
		"size":       len(data),
	}).Debug("Stored handoff in redis")
	return id, nil
}

func (s *RedisStore) Take(ctx context.Context, id string) (models.IntakeRecord, error) {
	data, err := s.client.GetDel(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.IntakeRecord{}, ErrNotFound
	}
	if err != nil {
		return models.IntakeRecord{}, fmt.Errorf("failed to take handoff: %w", err)
	}
	var record models.IntakeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return models.IntakeRecord{}, fmt.Errorf("failed to decode handoff: %w", err)
	}
	return record, nil
}
