package state

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps consumed nonces in Redis so several emulator processes
// behind one host name share replay protection.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a new Redis-based store
func NewRedisStore(cfg Config) (*RedisStore, error) {
	if len(cfg.Redis.Addresses) == 0 {
		return nil, fmt.Errorf("redis addresses not configured")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      cfg.Redis.Addresses,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		MasterName: cfg.Redis.MasterName,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStoreWithClient(client, cfg.Redis.KeyPrefix), nil
}

func newRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Consume marks nonce as used with SET NX, expiring with the nonce itself.
func (s *RedisStore) Consume(ctx context.Context, nonce string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}

	ok, err := s.client.SetNX(ctx, s.keyPrefix+nonce, 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to record nonce: %w", err)
	}
	if !ok {
		return ErrNonceReused
	}
	return nil
}

// Close closes the Redis client connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Name returns the store type name
func (s *RedisStore) Name() string {
	return "redis"
}
