package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey holds the registry document when no key is configured.
const DefaultRedisKey = "emojifed:federation:locations"

// Redis stores the registry as one JSON document under a single key, keeping
// the same layout as the file backend so state can be copied between them.
type Redis struct {
	client *redis.Client
	key    string
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithRedisKey overrides the key holding the registry document.
func WithRedisKey(key string) RedisOption {
	return func(r *Redis) {
		if key != "" {
			r.key = key
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, key: DefaultRedisKey}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Redis) Load(ctx context.Context) (map[string][]string, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load registry from redis: %w", err)
	}
	return decodeEntries(data)
}

func (r *Redis) Save(ctx context.Context, entries map[string][]string) error {
	data, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save registry to redis: %w", err)
	}
	return nil
}
