// Package state records OAuth login nonces that have already been redeemed,
// so a provider callback cannot be replayed while its nonce is still fresh.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNonceReused is returned when a nonce has already been consumed
	ErrNonceReused = errors.New("nonce already used")
	// ErrUnknownStoreType is returned for an unsupported store type
	ErrUnknownStoreType = errors.New("unknown nonce store type")
)

// Store defines the interface for consumed-nonce storage.
// Implementations must be safe for concurrent use.
type Store interface {
	// Consume marks nonce as used until expiresAt. It returns ErrNonceReused
	// when the nonce was consumed before.
	Consume(ctx context.Context, nonce string, expiresAt time.Time) error

	// Close releases any resources held by the store
	Close() error

	// Name returns the store type name
	Name() string
}

// Config holds nonce store configuration
type Config struct {
	// Type is the store type: "memory" or "redis"
	Type string `yaml:"type" mapstructure:"type" jsonschema:"enum=memory,enum=redis,default=memory"`
	// Redis configuration (used when Type is "redis")
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig holds Redis-specific store configuration
type RedisConfig struct {
	// Addresses is a list of Redis addresses
	Addresses []string `yaml:"addresses" mapstructure:"addresses"`
	// Password is the Redis password
	Password string `yaml:"password" mapstructure:"password"`
	// DB is the Redis database number
	DB int `yaml:"db" mapstructure:"db"`
	// KeyPrefix is the prefix for nonce keys
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
	// MasterName is the Sentinel master name (for Sentinel mode)
	MasterName string `yaml:"master_name" mapstructure:"master_name"`
}

// DefaultKeyPrefix namespaces nonce keys in Redis.
const DefaultKeyPrefix = "swa-emulator:nonce:"

// DefaultConfig returns default nonce store configuration
func DefaultConfig() Config {
	return Config{
		Type: "memory",
		Redis: RedisConfig{
			KeyPrefix: DefaultKeyPrefix,
		},
	}
}

// New creates the store selected by cfg.Type.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStoreType, cfg.Type)
	}
}
