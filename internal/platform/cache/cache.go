// Package cache provides TTL-based byte caches behind a driver registry.
// The sandbox uses it to keep decoded receipts close to the API.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound      = errors.New("cache: key not found")
	ErrUnknownDriver = errors.New("cache: unknown driver")
)

// Cache provides TTL-based key-value storage.
type Cache interface {
	// Get retrieves a value by key. Returns ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. If TTL is 0, use the driver default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Close releases resources.
	Close() error
}

// Counter provides fixed-window counters for rate limiting.
type Counter interface {
	// Increment adds delta to the counter at key and returns the new value
	// and the time the window resets. A counter that does not exist starts
	// a new window of length ttl.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error)

	// GetCount returns the current value, 0 if absent or expired.
	GetCount(ctx context.Context, key string) (int64, error)

	// Reset removes the counter.
	Reset(ctx context.Context, key string) error
}

// CacheWithCounter is a Cache that also provides counters.
type CacheWithCounter interface {
	Cache
	Counter
}

// Factory builds a cache from its [sandbox.cache.drivers.<name>] options.
type Factory func(options map[string]any, logger *slog.Logger) (Cache, error)

var (
	mu      sync.RWMutex
	drivers = map[string]Factory{}
)

// RegisterDriver makes a driver available by name. Drivers call it from init.
func RegisterDriver(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	drivers[name] = f
}

// NewFromConfig builds the named driver with its entry from options.
func NewFromConfig(driver string, options map[string]map[string]any, logger *slog.Logger) (Cache, error) {
	mu.RLock()
	f, ok := drivers[driver]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDriver, driver, Drivers())
	}
	return f(options[driver], logger)
}

// Drivers lists registered driver names in sorted order.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
