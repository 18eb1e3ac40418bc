package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/hostport"
)

// Mode represents the operating mode.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeCompat Mode = "compat"
	ModeDev    Mode = "dev"
)

// Status policies.
const (
	StatusPolicyStrict      = "strict"
	StatusPolicyPassthrough = "passthrough"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "compat":
		return ModeCompat, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of strict, compat, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
// Nil or empty values leave the underlying setting untouched.
type FlagOverrides struct {
	Host             *string
	Port             *string
	StatusPolicy     *string
	TimeoutMS        *string
	ConnectTimeoutMS *string
	LoggingLevel     *string
	LoggingFormat    *string
	ListenAddr       *string
	GenesisFile      *string
	StoreDriver      *string
	CacheDriver      *string
	LatencyMS        *string
	FailRate         *string
	FailCode         *string
	RateLimit        *string
}

// fileConfig mirrors Config but with pointer fields to detect presence.
type fileConfig struct {
	Mode    string         `toml:"mode"`
	Client  *clientConfig  `toml:"client"`
	Logging *loggingConfig `toml:"logging"`
	Sandbox *sandboxConfig `toml:"sandbox"`
}

type clientConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	StatusPolicy     string `toml:"status_policy"`
	TimeoutMS        *int   `toml:"timeout_ms"`
	ConnectTimeoutMS *int   `toml:"connect_timeout_ms"`
	MaxResponseBytes *int64 `toml:"max_response_bytes"`
	UserAgent        string `toml:"user_agent"`
}

type loggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type sandboxConfig struct {
	ListenAddr     string           `toml:"listen_addr"`
	GenesisFile    string           `toml:"genesis_file"`
	MaxConnections int              `toml:"max_connections"`
	Store          *StoreConfig     `toml:"store"`
	Cache          *cacheConfig     `toml:"cache"`
	Faults         *FaultsConfig    `toml:"faults"`
	RateLimit      *rateLimitConfig `toml:"ratelimit"`
}

type rateLimitConfig struct {
	RequestsPerWindow *int64 `toml:"requests_per_window"`
	WindowSeconds     int    `toml:"window_seconds"`
	Driver            string `toml:"driver"`
}

type cacheConfig struct {
	Driver     string                    `toml:"driver"`
	TTLSeconds *int                      `toml:"ttl_seconds"`
	Drivers    map[string]map[string]any `toml:"drivers"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (strict)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay CLI flags
//  5. Validate
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error (fail fast). Unknown/undecoded TOML keys produce a warning
// but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	modeStr := "strict"
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)

	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	if err := overlayFlags(cfg, opts.FlagOverrides); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	switch mode {
	case ModeDev:
		return DevConfig()
	case ModeCompat:
		return CompatConfig()
	default:
		return StrictConfig()
	}
}

// StrictConfig returns defaults that surface HTTP errors and bound requests.
func StrictConfig() *Config {
	return &Config{
		Mode: string(ModeStrict),
		Client: ClientConfig{
			Host:             "127.0.0.1",
			Port:             8080,
			StatusPolicy:     StatusPolicyStrict,
			TimeoutMS:        30000,
			ConnectTimeoutMS: 2000,
			MaxResponseBytes: 16 << 20,
			UserAgent:        "ledgerclient-go",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Sandbox: SandboxConfig{
			ListenAddr:     ":8080",
			MaxConnections: 256,
			Store: StoreConfig{
				Driver: "memory",
			},
			Faults: FaultsConfig{
				FailCode: 503,
			},
			RateLimit: RateLimitConfig{
				WindowSeconds: 60,
				Driver:        "memory",
			},
		},
	}
}

// CompatConfig returns defaults for callers that expect raw responses:
// non-2xx bodies pass through and requests never time out.
func CompatConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeCompat)
	cfg.Client.StatusPolicy = StatusPolicyPassthrough
	cfg.Client.TimeoutMS = 0
	cfg.Client.ConnectTimeoutMS = 0
	cfg.Client.MaxResponseBytes = 0
	return cfg
}

// DevConfig returns development defaults.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.Client.StatusPolicy = StatusPolicyPassthrough
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"
	cfg.Sandbox.MaxConnections = 0
	return cfg
}

// overlayFileConfig applies TOML file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.Client != nil {
		if fc.Client.Host != "" {
			cfg.Client.Host = fc.Client.Host
		}
		if fc.Client.Port != 0 {
			cfg.Client.Port = fc.Client.Port
		}
		if fc.Client.StatusPolicy != "" {
			cfg.Client.StatusPolicy = fc.Client.StatusPolicy
		}
		// Pointer fields: an explicit 0 disables the bound.
		if fc.Client.TimeoutMS != nil {
			cfg.Client.TimeoutMS = *fc.Client.TimeoutMS
		}
		if fc.Client.ConnectTimeoutMS != nil {
			cfg.Client.ConnectTimeoutMS = *fc.Client.ConnectTimeoutMS
		}
		if fc.Client.MaxResponseBytes != nil {
			cfg.Client.MaxResponseBytes = *fc.Client.MaxResponseBytes
		}
		if fc.Client.UserAgent != "" {
			cfg.Client.UserAgent = fc.Client.UserAgent
		}
	}

	if fc.Logging != nil {
		if fc.Logging.Level != "" {
			cfg.Logging.Level = fc.Logging.Level
		}
		if fc.Logging.Format != "" {
			cfg.Logging.Format = fc.Logging.Format
		}
	}

	if fc.Sandbox != nil {
		if fc.Sandbox.ListenAddr != "" {
			cfg.Sandbox.ListenAddr = fc.Sandbox.ListenAddr
		}
		if fc.Sandbox.GenesisFile != "" {
			cfg.Sandbox.GenesisFile = fc.Sandbox.GenesisFile
		}
		if fc.Sandbox.MaxConnections != 0 {
			cfg.Sandbox.MaxConnections = fc.Sandbox.MaxConnections
		}
		if fc.Sandbox.Store != nil {
			if fc.Sandbox.Store.Driver != "" {
				cfg.Sandbox.Store.Driver = fc.Sandbox.Store.Driver
			}
			if len(fc.Sandbox.Store.Drivers) > 0 {
				if cfg.Sandbox.Store.Drivers == nil {
					cfg.Sandbox.Store.Drivers = make(map[string]map[string]any)
				}
				for name, drvCfg := range fc.Sandbox.Store.Drivers {
					cfg.Sandbox.Store.Drivers[name] = drvCfg
				}
			}
		}
		if fc.Sandbox.Cache != nil {
			if fc.Sandbox.Cache.Driver != "" {
				cfg.Sandbox.Cache.Driver = fc.Sandbox.Cache.Driver
			}
			if fc.Sandbox.Cache.TTLSeconds != nil {
				cfg.Sandbox.Cache.TTLSeconds = *fc.Sandbox.Cache.TTLSeconds
			}
			if len(fc.Sandbox.Cache.Drivers) > 0 {
				if cfg.Sandbox.Cache.Drivers == nil {
					cfg.Sandbox.Cache.Drivers = make(map[string]map[string]any)
				}
				for name, drvCfg := range fc.Sandbox.Cache.Drivers {
					cfg.Sandbox.Cache.Drivers[name] = drvCfg
				}
			}
		}
		if fc.Sandbox.Faults != nil {
			// Faults section present: take it whole so rates can be reset to 0.
			cfg.Sandbox.Faults.LatencyMS = fc.Sandbox.Faults.LatencyMS
			cfg.Sandbox.Faults.FailRate = fc.Sandbox.Faults.FailRate
			if fc.Sandbox.Faults.FailCode != 0 {
				cfg.Sandbox.Faults.FailCode = fc.Sandbox.Faults.FailCode
			}
		}
		if fc.Sandbox.RateLimit != nil {
			if fc.Sandbox.RateLimit.RequestsPerWindow != nil {
				cfg.Sandbox.RateLimit.RequestsPerWindow = *fc.Sandbox.RateLimit.RequestsPerWindow
			}
			if fc.Sandbox.RateLimit.WindowSeconds != 0 {
				cfg.Sandbox.RateLimit.WindowSeconds = fc.Sandbox.RateLimit.WindowSeconds
			}
			if fc.Sandbox.RateLimit.Driver != "" {
				cfg.Sandbox.RateLimit.Driver = fc.Sandbox.RateLimit.Driver
			}
		}
	}
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, f FlagOverrides) error {
	if set(f.Host) {
		cfg.Client.Host = *f.Host
	}
	if set(f.Port) {
		port, err := strconv.Atoi(*f.Port)
		if err != nil {
			return fmt.Errorf("invalid port flag %q: %w", *f.Port, err)
		}
		cfg.Client.Port = port
	}
	if set(f.StatusPolicy) {
		cfg.Client.StatusPolicy = *f.StatusPolicy
	}
	if set(f.TimeoutMS) {
		ms, err := strconv.Atoi(*f.TimeoutMS)
		if err != nil {
			return fmt.Errorf("invalid timeout flag %q: %w", *f.TimeoutMS, err)
		}
		cfg.Client.TimeoutMS = ms
	}
	if set(f.ConnectTimeoutMS) {
		ms, err := strconv.Atoi(*f.ConnectTimeoutMS)
		if err != nil {
			return fmt.Errorf("invalid connect timeout flag %q: %w", *f.ConnectTimeoutMS, err)
		}
		cfg.Client.ConnectTimeoutMS = ms
	}
	if set(f.LoggingLevel) {
		cfg.Logging.Level = *f.LoggingLevel
	}
	if set(f.LoggingFormat) {
		cfg.Logging.Format = *f.LoggingFormat
	}
	if set(f.ListenAddr) {
		cfg.Sandbox.ListenAddr = *f.ListenAddr
	}
	if set(f.GenesisFile) {
		cfg.Sandbox.GenesisFile = *f.GenesisFile
	}
	if set(f.StoreDriver) {
		cfg.Sandbox.Store.Driver = *f.StoreDriver
	}
	if set(f.CacheDriver) {
		cfg.Sandbox.Cache.Driver = *f.CacheDriver
	}
	if set(f.LatencyMS) {
		ms, err := strconv.Atoi(*f.LatencyMS)
		if err != nil {
			return fmt.Errorf("invalid latency flag %q: %w", *f.LatencyMS, err)
		}
		cfg.Sandbox.Faults.LatencyMS = ms
	}
	if set(f.FailRate) {
		rate, err := strconv.ParseFloat(*f.FailRate, 64)
		if err != nil {
			return fmt.Errorf("invalid fail rate flag %q: %w", *f.FailRate, err)
		}
		cfg.Sandbox.Faults.FailRate = rate
	}
	if set(f.FailCode) {
		code, err := strconv.Atoi(*f.FailCode)
		if err != nil {
			return fmt.Errorf("invalid fail code flag %q: %w", *f.FailCode, err)
		}
		cfg.Sandbox.Faults.FailCode = code
	}
	if set(f.RateLimit) {
		n, err := strconv.ParseInt(*f.RateLimit, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid rate limit flag %q: %w", *f.RateLimit, err)
		}
		cfg.Sandbox.RateLimit.RequestsPerWindow = n
	}
	return nil
}

func set(p *string) bool {
	return p != nil && *p != ""
}

// validate checks enum-like and ranged fields and returns an error for invalid values.
func validate(cfg *Config) error {
	if err := hostport.ValidateHost(cfg.Client.Host); err != nil {
		return fmt.Errorf("invalid client.host: %w", err)
	}
	if err := hostport.ValidatePort(cfg.Client.Port); err != nil {
		return fmt.Errorf("invalid client.port: %w", err)
	}

	switch cfg.Client.StatusPolicy {
	case StatusPolicyStrict, StatusPolicyPassthrough:
		// valid
	default:
		return fmt.Errorf("invalid client.status_policy %q: must be one of strict, passthrough", cfg.Client.StatusPolicy)
	}

	if cfg.Client.TimeoutMS < 0 {
		return fmt.Errorf("invalid client.timeout_ms %d: must not be negative", cfg.Client.TimeoutMS)
	}
	if cfg.Client.ConnectTimeoutMS < 0 {
		return fmt.Errorf("invalid client.connect_timeout_ms %d: must not be negative", cfg.Client.ConnectTimeoutMS)
	}
	if cfg.Client.MaxResponseBytes < 0 {
		return fmt.Errorf("invalid client.max_response_bytes %d: must not be negative", cfg.Client.MaxResponseBytes)
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "json", "text":
		// valid
	default:
		return fmt.Errorf("invalid logging.format %q: must be one of json, text", cfg.Logging.Format)
	}

	switch cfg.Sandbox.Store.Driver {
	case "", "memory", "sqlite", "json":
		// valid (empty defaults to memory)
	default:
		return fmt.Errorf("invalid sandbox.store.driver %q: must be one of memory, sqlite, json", cfg.Sandbox.Store.Driver)
	}

	switch cfg.Sandbox.Cache.Driver {
	case "", "off", "memory", "valkey", "redis":
		// valid (empty and off disable the receipt cache)
	default:
		return fmt.Errorf("invalid sandbox.cache.driver %q: must be one of off, memory, valkey, redis", cfg.Sandbox.Cache.Driver)
	}
	if cfg.Sandbox.Cache.TTLSeconds < 0 {
		return fmt.Errorf("invalid sandbox.cache.ttl_seconds %d: must not be negative", cfg.Sandbox.Cache.TTLSeconds)
	}

	if cfg.Sandbox.MaxConnections < 0 {
		return fmt.Errorf("invalid sandbox.max_connections %d: must not be negative", cfg.Sandbox.MaxConnections)
	}

	f := cfg.Sandbox.Faults
	if f.LatencyMS < 0 {
		return fmt.Errorf("invalid sandbox.faults.latency_ms %d: must not be negative", f.LatencyMS)
	}
	if f.FailRate < 0 || f.FailRate > 1 {
		return fmt.Errorf("invalid sandbox.faults.fail_rate %v: must be within 0..1", f.FailRate)
	}
	if f.FailRate > 0 && (f.FailCode < 400 || f.FailCode > 599) {
		return fmt.Errorf("invalid sandbox.faults.fail_code %d: must be a 4xx or 5xx status", f.FailCode)
	}

	rl := cfg.Sandbox.RateLimit
	if rl.RequestsPerWindow < 0 {
		return fmt.Errorf("invalid sandbox.ratelimit.requests_per_window %d: must not be negative", rl.RequestsPerWindow)
	}
	if rl.Enabled() {
		if rl.WindowSeconds <= 0 {
			return fmt.Errorf("invalid sandbox.ratelimit.window_seconds %d: must be positive", rl.WindowSeconds)
		}
		switch rl.Driver {
		case "memory", "valkey", "redis":
			// valid
		default:
			return fmt.Errorf("invalid sandbox.ratelimit.driver %q: must be one of memory, valkey, redis", rl.Driver)
		}
	}

	if cfg.Sandbox.GenesisFile != "" {
		if _, err := os.Stat(cfg.Sandbox.GenesisFile); err != nil {
			return fmt.Errorf("sandbox genesis file %q is not readable: %w", cfg.Sandbox.GenesisFile, err)
		}
	}

	return nil
}
