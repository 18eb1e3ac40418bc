// Package config provides configuration loading and validation.
package config

import (
	"time"
)

// Config holds the configuration shared by ledgerctl and ledger-sandbox.
type Config struct {
	// Mode is the operating mode: strict, compat, or dev.
	Mode string `toml:"mode"`

	// Client configures the outbound ledger client.
	Client ClientConfig `toml:"client"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`

	// Sandbox configures the local ledger server.
	Sandbox SandboxConfig `toml:"sandbox"`
}

// ClientConfig holds the ledger client target and request policy.
type ClientConfig struct {
	// Host is the ledger service host. Example: "127.0.0.1"
	Host string `toml:"host"`

	// Port is the ledger service port (1..65535).
	Port int `toml:"port"`

	// StatusPolicy controls non-2xx handling: strict or passthrough.
	// strict surfaces non-2xx responses as errors; passthrough delivers
	// their bodies as ordinary results.
	StatusPolicy string `toml:"status_policy"`

	// TimeoutMS bounds a whole request. 0 disables the timeout.
	TimeoutMS int `toml:"timeout_ms"`

	// ConnectTimeoutMS bounds the TCP dial. 0 leaves dialing unbounded.
	ConnectTimeoutMS int `toml:"connect_timeout_ms"`

	// MaxResponseBytes caps the accumulated response body. 0 means no cap.
	MaxResponseBytes int64 `toml:"max_response_bytes"`

	// UserAgent is sent with every request when non-empty.
	UserAgent string `toml:"user_agent"`
}

// Timeout returns TimeoutMS as a duration.
func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// ConnectTimeout returns ConnectTimeoutMS as a duration.
func (c ClientConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

// OutboundHTTPConfig is the transport-level view of ClientConfig consumed by
// the outbound HTTP client. Request deadlines and body limits are applied
// per call by the ledger client.
type OutboundHTTPConfig struct {
	ConnectTimeoutMS int
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info in strict/compat mode, debug in dev mode.
	Level string `toml:"level"`

	// Format is json or text. ledgerctl writes text to stderr regardless.
	Format string `toml:"format"`
}

// SandboxConfig holds ledger-sandbox settings.
type SandboxConfig struct {
	// ListenAddr is the address to listen on. Example: ":8080"
	ListenAddr string `toml:"listen_addr"`

	// GenesisFile optionally seeds accounts at startup.
	GenesisFile string `toml:"genesis_file"`

	// MaxConnections caps concurrent connections. 0 means unlimited.
	MaxConnections int `toml:"max_connections"`

	// Store selects the persistence driver.
	Store StoreConfig `toml:"store"`

	// Cache optionally fronts receipt lookups.
	Cache CacheConfig `toml:"cache"`

	// Faults injects latency and failures for client testing.
	Faults FaultsConfig `toml:"faults"`

	// RateLimit caps requests per client on the ledger routes.
	RateLimit RateLimitConfig `toml:"ratelimit"`
}

// StoreConfig holds store driver settings.
type StoreConfig struct {
	// Driver is the driver name: memory (default), sqlite, or json.
	Driver string `toml:"driver"`

	// Drivers holds per-driver configuration.
	// Example: [sandbox.store.drivers.sqlite] data_dir = ".ledger"
	Drivers map[string]map[string]any `toml:"drivers"`
}

// CacheConfig holds receipt cache settings.
type CacheConfig struct {
	// Driver is the cache driver: off (default), memory, valkey, or redis.
	Driver string `toml:"driver"`

	// TTLSeconds bounds cached receipts. 0 uses the driver default.
	TTLSeconds int `toml:"ttl_seconds"`

	// Drivers holds per-driver configuration.
	// Example: [sandbox.cache.drivers.valkey] addr = "localhost:6379"
	Drivers map[string]map[string]any `toml:"drivers"`
}

// Enabled reports whether a cache driver is selected.
func (c CacheConfig) Enabled() bool {
	return c.Driver != "" && c.Driver != "off"
}

// TTL returns TTLSeconds as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	// RequestsPerWindow is the allowance per client IP. 0 disables limiting.
	RequestsPerWindow int64 `toml:"requests_per_window"`

	// WindowSeconds is the fixed window length.
	WindowSeconds int `toml:"window_seconds"`

	// Driver is the cache driver holding the counters: memory, valkey, or
	// redis. Driver options come from [sandbox.cache.drivers.<driver>].
	Driver string `toml:"driver"`
}

// Enabled reports whether limiting is on.
func (r RateLimitConfig) Enabled() bool {
	return r.RequestsPerWindow > 0
}

// Window returns WindowSeconds as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// FaultsConfig holds failure injection settings.
type FaultsConfig struct {
	// LatencyMS delays every response.
	LatencyMS int `toml:"latency_ms"`

	// FailRate is the probability (0..1) that a request fails with FailCode.
	FailRate float64 `toml:"fail_rate"`

	// FailCode is the HTTP status returned for injected failures.
	FailCode int `toml:"fail_code"`
}

// Latency returns LatencyMS as a duration.
func (f FaultsConfig) Latency() time.Duration {
	return time.Duration(f.LatencyMS) * time.Millisecond
}
