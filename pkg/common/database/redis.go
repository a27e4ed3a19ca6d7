package database

import (
	"context"
	"fmt"
	"time"

	"github.com/readmit-ai/hrp/pkg/common/config"
	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

func NewRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.WithError(err).Error("Failed to connect to Redis")
		client.Close()
		return nil, err
	}
	logger.Log.Info("Connected to Redis")
	return client, nil
}
