// Package cache provides a small multi-backend cache abstraction.
//
// Supported backends:
//   - Memory (in-process, development/testing)
//   - Redis (distributed, production; sessions must be shared across replicas)
package cache

import (
	"context"
	"errors"
	"time"
)

// Client defines the cache operations used by the session layer.
type Client interface {
	// Get fetches a value. Returns ErrNotFound when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// Config selects and configures a cache backend.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // prefix applied to every key

	// DefaultTTL applies to the memory backend's janitor.
	DefaultTTL time.Duration
}

// Cache errors.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "cache: key not found" }

// IsNotFound reports whether the error means the key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// New creates a cache client for the configuration.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg), nil
	}
}
