package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "graphview:state:"
	keysSet   = "graphview:state-keys"
)

// Store keeps client state in Redis. Every written key is tracked in a set
// so Clear can remove them without a SCAN.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) makeKey(key string) string {
	return keyPrefix + key
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.makeKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to GET %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	full := s.makeKey(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, full, value, 0)
		pipe.SAdd(ctx, keysSet, full)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to SET %s: %w", key, err)
	}
	return nil
}

// Clear deletes every key written through this store.
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.client.SMembers(ctx, keysSet).Result()
	if err != nil {
		return fmt.Errorf("failed to SMEMBERS %s: %w", keysSet, err)
	}
	keys = append(keys, keysSet)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to DEL state keys: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
