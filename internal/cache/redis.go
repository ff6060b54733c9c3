package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/modelmux/modelmux/pkg/types"
	"github.com/modelmux/modelmux/pkg/utils"
)

// Redis backs the response cache with a shared redis instance. TTL is
// enforced server-side; capacity is left to redis' own maxmemory policy.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *utils.Logger
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(config *types.RedisConfig, ttl time.Duration, logger *utils.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.Database,

		PoolSize:     10,
		MinIdleConns: 5,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: failed to connect to redis: %w", err)
	}

	logger.Info("Connected to redis response cache")

	return &Redis{client: client, ttl: ttl, logger: logger}, nil
}

// Get retrieves a value by key, unmarshalling into dest.
func (r *Redis) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("cache: redis get: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("cache: failed to unmarshal entry: %w", err)
	}
	return true, nil
}

// Set stores a value with the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal value: %w", err)
	}
	return r.client.Set(ctx, r.key(key), data, r.ttl).Err()
}

// Close closes the redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key(key string) string {
	return "modelmux:cache:" + key
}
