package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/franckalain/mealdose/internal/models"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis constructs a redis-backed session store.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "mealdose:session:"
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) tokenKey() string  { return s.prefix + "token" }
func (s *redisStore) userIDKey() string { return s.prefix + "user_id" }

func (s *redisStore) get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *redisStore) Token(ctx context.Context) (string, error) {
	return s.get(ctx, s.tokenKey())
}

func (s *redisStore) UserID(ctx context.Context) (string, error) {
	return s.get(ctx, s.userIDKey())
}

func (s *redisStore) Set(ctx context.Context, cred models.Credential) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(), cred.Token, 0)
		pipe.Set(ctx, s.userIDKey(), cred.UserID, 0)
		return nil
	})
	return err
}

func (s *redisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.tokenKey(), s.userIDKey()).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
