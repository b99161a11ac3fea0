package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sweetpotato0/genui/conversation"
	genuierrors "github.com/sweetpotato0/genui/errors"
)

// RedisStore persists conversation states as JSON documents in Redis, with a
// set indexing the known IDs.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis configuration for conversations.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "genui:conversation:",
		TTL:    24 * time.Hour,
	}
}

// NewRedisStore creates a Redis-backed repository.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = DefaultRedisConfig()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisStore{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

// Save implements conversation.Repository.
func (s *RedisStore) Save(ctx context.Context, state conversation.State) error {
	if state.ID == "" {
		return fmt.Errorf("conversation id cannot be empty: %w", genuierrors.ErrInvalidInput)
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(state.ID), raw, s.ttl)
		pipe.SAdd(ctx, s.indexKey(), state.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// Load implements conversation.Repository.
func (s *RedisStore) Load(ctx context.Context, id string) (conversation.State, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return conversation.State{}, fmt.Errorf("conversation %s: %w", id, genuierrors.ErrNotFound)
		}
		return conversation.State{}, fmt.Errorf("failed to load conversation: %w", err)
	}

	var state conversation.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return conversation.State{}, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return state, nil
}

// Delete implements conversation.Repository.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// List implements conversation.Repository. IDs whose document expired are
// pruned from the index.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	live := ids[:0]
	for _, id := range ids {
		n, err := s.client.Exists(ctx, s.key(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check conversation %s: %w", id, err)
		}
		if n > 0 {
			live = append(live, id)
			continue
		}
		s.client.SRem(ctx, s.indexKey(), id)
	}
	return live, nil
}

// Ping checks if the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "ids"
}
