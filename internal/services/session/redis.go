package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sergey214/socrates-bot2/internal/config"
	"github.com/sergey214/socrates-bot2/internal/models"
	"github.com/sirupsen/logrus"
)

// RedisStore keeps histories in Redis so windows survive a process restart.
// One key per user holds the JSON-encoded window with the idle TTL.
type RedisStore struct {
	client  *redis.Client
	window  int
	idleTTL time.Duration
	logger  *logrus.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg *config.SessionConfig, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:  client,
		window:  cfg.Window,
		idleTTL: cfg.IdleTTL,
		logger:  logger,
	}, nil
}

func (s *RedisStore) Append(ctx context.Context, userID int64, turn models.Turn) error {
	turns, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	turns = trimWindow(append(turns, turn), s.window)
	data, err := json.Marshal(turns)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, historyKey(userID), data, s.idleTTL).Err()
}

func (s *RedisStore) History(ctx context.Context, userID int64) ([]models.Turn, error) {
	return s.load(ctx, userID)
}

func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, historyKey(userID)).Err()
}

func (s *RedisStore) load(ctx context.Context, userID int64) ([]models.Turn, error) {
	data, err := s.client.Get(ctx, historyKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var turns []models.Turn
	if err := json.Unmarshal([]byte(data), &turns); err != nil {
		return nil, err
	}
	return turns, nil
}
