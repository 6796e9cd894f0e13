package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCounterStore keeps the counter in a single string key.
type RedisCounterStore struct {
	redis  *Redis
	key    string
	logger *zap.Logger
}

// NewRedisCounterStore returns a store bound to key.
func NewRedisCounterStore(r *Redis, key string, logger *zap.Logger) *RedisCounterStore {
	if key == "" {
		key = "ticket_counter"
	}
	return &RedisCounterStore{redis: r, key: key, logger: logger}
}

func (s *RedisCounterStore) Load(ctx context.Context) int {
	value, err := s.redis.Client.Get(ctx, s.key).Int()
	if errors.Is(err, redis.Nil) {
		return DefaultCounter
	}
	if err != nil {
		s.logger.Warn("error loading ticket counter", zap.String("key", s.key), zap.Error(err))
		return DefaultCounter
	}
	return normalizeCounter(value)
}

func (s *RedisCounterStore) Save(ctx context.Context, value int) error {
	return s.redis.Client.Set(ctx, s.key, value, 0).Err()
}

func (s *RedisCounterStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx)
}

// Close is a no-op; the shared client is owned by the caller.
func (s *RedisCounterStore) Close() error { return nil }
