package wordlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"

	"github.com/whisper/moderator/internal/moderation"
)

// RedisStore shares cached word lists between moderator replicas, with a
// small in-process LFU in front of Redis.
type RedisStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ Store = (*RedisStore)(nil)

// DefaultRedisTTL is used when NewRedisStore is given a non-positive ttl.
const DefaultRedisTTL = 24 * time.Hour

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisStore{
		Data: cache.New(&cache.Options{
			Redis:      rdb,
			LocalCache: cache.NewTinyLFU(1_000, time.Minute),
		}),
		TTL: ttl,
	}
}

func redisKey(category string) string {
	return "wordlist/" + category
}

// Load returns the shared list or ErrNotCached.
func (s *RedisStore) Load(ctx context.Context, category string) (moderation.WordList, error) {
	var list moderation.WordList
	err := s.Data.Get(ctx, redisKey(category), &list)
	if errors.Is(err, cache.ErrCacheMiss) {
		return moderation.WordList{}, ErrNotCached
	}
	if err != nil {
		return moderation.WordList{}, fmt.Errorf("wordlist: redis get %s: %w", category, err)
	}
	return list, nil
}

// Save publishes list for every replica.
func (s *RedisStore) Save(ctx context.Context, category string, list moderation.WordList) error {
	err := s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisKey(category),
		Value: list,
		TTL:   s.TTL,
	})
	if err != nil {
		return fmt.Errorf("wordlist: redis set %s: %w", category, err)
	}
	return nil
}
