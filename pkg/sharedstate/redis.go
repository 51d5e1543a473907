package sharedstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

// DefaultTTL is how long shared data outlives the last write.
const DefaultTTL = 24 * time.Hour

// KeyPrefix namespaces every key written by RedisStore.
const KeyPrefix = "beehive:job:"

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string `mapstructure:"url" yaml:"url" validate:"omitempty,url"`

	// TTL is the retention of a job's shared data. Zero means DefaultTTL.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// RedisStore keeps shared data in Redis as one JSON document per job.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store from a Redis URL.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), cfg.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Key returns the Redis key holding the shared data of a job.
func Key(jobID string) string {
	return KeyPrefix + jobID + ":shared"
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return engine.NewStateUnavailableError("redis is unreachable", err)
	}
	return nil
}

// Get returns the shared data of a job.
func (s *RedisStore) Get(ctx context.Context, jobID string) (engine.SharedData, error) {
	raw, err := s.client.Get(ctx, Key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, engine.NewStateUnavailableError(fmt.Sprintf("shared data of job %s is not initialized", jobID), nil).
			WithResource(jobID)
	}
	if err != nil {
		return nil, engine.NewStateUnavailableError(fmt.Sprintf("failed to read shared data of job %s", jobID), err).
			WithResource(jobID)
	}

	data, err := engine.DecodeSharedData(raw)
	if err != nil {
		return nil, engine.NewStateUnavailableError(fmt.Sprintf("shared data of job %s is corrupt", jobID), err).
			WithResource(jobID)
	}
	return data, nil
}

// Set replaces the shared data of a job and refreshes its TTL.
func (s *RedisStore) Set(ctx context.Context, jobID string, data engine.SharedData) error {
	if data == nil {
		data = engine.SharedData{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode shared data of job %s: %w", jobID, err)
	}
	if err := s.client.Set(ctx, Key(jobID), raw, s.ttl).Err(); err != nil {
		return engine.NewStateUnavailableError(fmt.Sprintf("failed to write shared data of job %s", jobID), err).
			WithResource(jobID)
	}
	return nil
}

// Delete drops the shared data of a job.
func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, Key(jobID)).Err(); err != nil {
		return engine.NewStateUnavailableError(fmt.Sprintf("failed to delete shared data of job %s", jobID), err).
			WithResource(jobID)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
