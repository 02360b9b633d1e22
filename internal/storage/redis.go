package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis returns a Store backed by client.  Every key is prefixed with
// prefix and a colon.  Entries never expire; logout deletes them.
func NewRedis(client *redis.Client, prefix string) Store {
	if prefix == "" {
		prefix = "svc"
	}
	return &redisStore{client: client, prefix: prefix + ":"}
}

func (s *redisStore) key(k string) string { return s.prefix + k }

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMissing
		}
		return "", err
	}
	return v, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

func (s *redisStore) SetNX(ctx context.Context, key, value string) (bool, error) {
	return s.client.SetNX(ctx, s.key(key), value, 0).Result()
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.client.Del(ctx, full...).Err()
}
