// Package redis provides a Redis/Valkey cache driver backed by valkey-go.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/cache"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/cfg"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/logutil"
)

func init() {
	factory := func(options map[string]any, logger *slog.Logger) (cache.Cache, error) {
		var c Config
		unused, err := cfg.DecodeWithUnused(options, &c)
		if err != nil {
			return nil, fmt.Errorf("valkey cache: %w", err)
		}
		if len(unused) > 0 {
			logutil.NoopIfNil(logger).Warn("unknown valkey cache options ignored", "keys", unused)
		}
		return New(&c, logger)
	}
	cache.RegisterDriver("valkey", factory)
	cache.RegisterDriver("redis", factory)
}

// Config holds Redis connection configuration, read from
// [sandbox.cache.drivers.valkey].
type Config struct {
	Addr              string `mapstructure:"addr"`     // host:port
	Password          string `mapstructure:"password"` // Optional password
	DB                int    `mapstructure:"db"`       // Database number
	DialTimeoutMS     int    `mapstructure:"dial_timeout_ms"`
	WriteTimeoutMS    int    `mapstructure:"write_timeout_ms"`
	DefaultTTLSeconds int    `mapstructure:"default_ttl_seconds"`
	KeyPrefix         string `mapstructure:"key_prefix"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.DialTimeoutMS <= 0 {
		c.DialTimeoutMS = 5000
	}
	if c.WriteTimeoutMS <= 0 {
		c.WriteTimeoutMS = 3000
	}
	if c.DefaultTTLSeconds <= 0 {
		c.DefaultTTLSeconds = 900
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "ledger:"
	}
}

// DefaultConfig returns defaults for a local server.
func DefaultConfig() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Cache stores values in Redis or Valkey.
type Cache struct {
	client     valkey.Client
	prefix     string
	defaultTTL time.Duration
}

// New connects to the configured server. It fails fast when the server is
// unreachable.
func New(c *Config, logger *slog.Logger) (*Cache, error) {
	if c == nil {
		c = DefaultConfig()
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:      []string{c.Addr},
		Password:         c.Password,
		SelectDB:         c.DB,
		Dialer:           net.Dialer{Timeout: time.Duration(c.DialTimeoutMS) * time.Millisecond},
		ConnWriteTimeout: time.Duration(c.WriteTimeoutMS) * time.Millisecond,
		// Client-side caching needs CLIENT TRACKING, which not every
		// Redis-compatible server implements.
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey cache: connect %s: %w", c.Addr, err)
	}

	logutil.NoopIfNil(logger).Info("cache connected", "driver", "valkey", "addr", c.Addr, "db", c.DB)
	return &Cache{
		client:     client,
		prefix:     c.KeyPrefix,
		defaultTTL: time.Duration(c.DefaultTTLSeconds) * time.Second,
	}, nil
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// Set stores a value with the given TTL, rounded up to whole seconds.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if ttl < 0 {
		return errors.New("valkey cache: negative ttl")
	}
	secs := int64((ttl + time.Second - 1) / time.Second)
	cmd := c.client.B().Set().Key(c.prefix + key).Value(valkey.BinaryString(value)).ExSeconds(secs).Build()
	return c.client.Do(ctx, cmd).Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(c.prefix+key).Build()).Error()
}

// Increment adds delta to a counter. A counter without an expiry (new, or
// created by a racing caller) gets ttl, rounded up to whole seconds.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	k := c.prefix + key

	n, err := c.client.Do(ctx, c.client.B().Incrby().Key(k).Increment(delta).Build()).AsInt64()
	if err != nil {
		return 0, time.Time{}, err
	}
	pttl, err := c.client.Do(ctx, c.client.B().Pttl().Key(k).Build()).AsInt64()
	if err != nil {
		return 0, time.Time{}, err
	}
	if pttl < 0 {
		secs := int64((ttl + time.Second - 1) / time.Second)
		if err := c.client.Do(ctx, c.client.B().Expire().Key(k).Seconds(secs).Build()).Error(); err != nil {
			return 0, time.Time{}, err
		}
		pttl = secs * 1000
	}
	return n, time.Now().Add(time.Duration(pttl) * time.Millisecond), nil
}

// GetCount returns the current counter value, 0 if absent.
func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+key).Build()).AsInt64()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// Reset removes a counter.
func (c *Cache) Reset(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}

// Close releases the connection.
func (c *Cache) Close() error {
	c.client.Close()
	return nil
}

var _ cache.CacheWithCounter = (*Cache)(nil)
