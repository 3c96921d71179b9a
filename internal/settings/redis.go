package settings

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash that holds the document when no key is given.
const DefaultRedisKey = "livesfx:settings"

// RedisStore keeps the document as a Redis hash, one field per key.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) Load(ctx context.Context) (*Policy, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read settings hash %s: %w", s.key, err)
	}
	if len(fields) == 0 {
		return Default(), nil
	}
	doc, err := decodeFields(fields)
	if err != nil {
		return nil, err
	}
	return doc.Policy(), nil
}

func (s *RedisStore) Save(ctx context.Context, p *Policy) error {
	fields, err := encodeFields(NewDocument(p))
	if err != nil {
		return err
	}
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	if err := s.client.HSet(ctx, s.key, values).Err(); err != nil {
		return fmt.Errorf("failed to write settings hash %s: %w", s.key, err)
	}
	return nil
}
