package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"domainfinder/internal/domain"
)

const defaultKeyPrefix = "domainfinder:verify:"

// RedisStore shares outcomes between processes.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects using a redis:// URL and pings the server.
func NewRedisStore(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStoreWithClient(client, ""), nil
}

func NewRedisStoreWithClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) Get(ctx context.Context, host string) (domain.VerifyOutcome, bool, error) {
	val, err := s.client.Get(ctx, s.keyPrefix+host).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get cached outcome: %w", err)
	}
	return domain.ParseVerifyOutcome(val), true, nil
}

func (s *RedisStore) Set(ctx context.Context, host string, outcome domain.VerifyOutcome, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+host, outcome.String(), ttl).Err(); err != nil {
		return fmt.Errorf("set cached outcome: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
