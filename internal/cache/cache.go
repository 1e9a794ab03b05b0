package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrMiss reports an absent cache entry.
var ErrMiss = errors.New("cache: miss")

// Store is a read-through cache for JSON-encodable values. Entries are
// evicted strictly after a successful terminal write; the rating upsert loop
// never reads through this cache, since a stale snapshot there would defeat
// the version check.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

// Cache keys.
func MovieKey(movieID string) string { return "movie:" + movieID }

func UserRatingsKey(userID string) string { return "user-ratings:" + userID }

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore builds a Redis-backed Store with the given entry TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) Store {
	return &redisStore{client: client, ttl: ttl, logger: logger}
}

func (s *redisStore) Get(ctx context.Context, key string, dest any) error {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		// treat an unreachable cache as a miss so reads fall through
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return ErrMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *redisStore) Set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
	return nil
}
