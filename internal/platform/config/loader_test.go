package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func strPtr(s string) *string { return &s }

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{"strict", "strict", ModeStrict, false},
		{"compat", "compat", ModeCompat, false},
		{"dev", "dev", ModeDev, false},
		{"empty defaults to strict", "", ModeStrict, false},
		{"uppercase", "STRICT", ModeStrict, false},
		{"whitespace", "  dev  ", ModeDev, false},
		{"invalid", "interop", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(LoaderOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "strict" {
		t.Errorf("expected mode strict, got %s", cfg.Mode)
	}
	if cfg.Client.StatusPolicy != StatusPolicyStrict {
		t.Errorf("expected status policy strict, got %s", cfg.Client.StatusPolicy)
	}
	if cfg.Client.TimeoutMS != 30000 {
		t.Errorf("expected 30000ms timeout, got %d", cfg.Client.TimeoutMS)
	}
	if cfg.Client.Host != "127.0.0.1" || cfg.Client.Port != 8080 {
		t.Errorf("unexpected default target %s:%d", cfg.Client.Host, cfg.Client.Port)
	}
}

func TestLoad_CompatModeDisablesBounds(t *testing.T) {
	cfg, err := Load(LoaderOptions{ModeFlag: "compat"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Client.StatusPolicy != StatusPolicyPassthrough {
		t.Errorf("expected passthrough in compat mode, got %s", cfg.Client.StatusPolicy)
	}
	if cfg.Client.Timeout() != 0 {
		t.Errorf("expected no timeout in compat mode, got %v", cfg.Client.Timeout())
	}
	if cfg.Client.MaxResponseBytes != 0 {
		t.Errorf("expected unbounded body in compat mode, got %d", cfg.Client.MaxResponseBytes)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
mode = "dev"

[client]
host = "ledger.internal"
port = 9090
status_policy = "strict"
timeout_ms = 0

[logging]
level = "warn"

[sandbox]
listen_addr = ":9999"

[sandbox.store]
driver = "sqlite"

[sandbox.store.drivers.sqlite]
data_dir = "/tmp/ledger"

[sandbox.cache]
driver = "valkey"
ttl_seconds = 60

[sandbox.cache.drivers.valkey]
addr = "cache:6379"

[sandbox.faults]
latency_ms = 25
fail_rate = 0.5
fail_code = 502

[sandbox.ratelimit]
requests_per_window = 10
window_seconds = 5
driver = "valkey"
`)

	cfg, err := Load(LoaderOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "dev" {
		t.Errorf("expected mode dev, got %s", cfg.Mode)
	}
	if cfg.Client.Host != "ledger.internal" || cfg.Client.Port != 9090 {
		t.Errorf("unexpected target %s:%d", cfg.Client.Host, cfg.Client.Port)
	}
	if cfg.Client.StatusPolicy != StatusPolicyStrict {
		t.Errorf("file should override dev preset status policy, got %s", cfg.Client.StatusPolicy)
	}
	if cfg.Client.TimeoutMS != 0 {
		t.Errorf("explicit timeout_ms = 0 should disable the timeout, got %d", cfg.Client.TimeoutMS)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("dev preset format should survive, got %s", cfg.Logging.Format)
	}
	if cfg.Sandbox.Store.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.Sandbox.Store.Driver)
	}
	if got := cfg.Sandbox.Store.Drivers["sqlite"]["data_dir"]; got != "/tmp/ledger" {
		t.Errorf("expected sqlite data_dir /tmp/ledger, got %v", got)
	}
	if !cfg.Sandbox.Cache.Enabled() || cfg.Sandbox.Cache.Driver != "valkey" || cfg.Sandbox.Cache.TTL().Seconds() != 60 {
		t.Errorf("unexpected cache %+v", cfg.Sandbox.Cache)
	}
	if got := cfg.Sandbox.Cache.Drivers["valkey"]["addr"]; got != "cache:6379" {
		t.Errorf("expected valkey addr cache:6379, got %v", got)
	}
	if cfg.Sandbox.Faults.FailRate != 0.5 || cfg.Sandbox.Faults.FailCode != 502 || cfg.Sandbox.Faults.LatencyMS != 25 {
		t.Errorf("unexpected faults %+v", cfg.Sandbox.Faults)
	}
	rl := cfg.Sandbox.RateLimit
	if !rl.Enabled() || rl.RequestsPerWindow != 10 || rl.Window().Seconds() != 5 || rl.Driver != "valkey" {
		t.Errorf("unexpected ratelimit %+v", rl)
	}
}

func TestLoad_RateLimitFlag(t *testing.T) {
	cfg, err := Load(LoaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sandbox.RateLimit.Enabled() {
		t.Error("rate limiting should be off by default")
	}

	cfg, err = Load(LoaderOptions{FlagOverrides: FlagOverrides{RateLimit: strPtr("3")}})
	if err != nil {
		t.Fatal(err)
	}
	rl := cfg.Sandbox.RateLimit
	if rl.RequestsPerWindow != 3 || rl.WindowSeconds != 60 || rl.Driver != "memory" {
		t.Errorf("flag should enable the preset window and driver, got %+v", rl)
	}
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
[client]
host = "file-host"
port = 1000
`)

	cfg, err := Load(LoaderOptions{
		ConfigPath: path,
		ModeFlag:   "compat",
		FlagOverrides: FlagOverrides{
			Host:         strPtr("flag-host"),
			Port:         strPtr("2000"),
			StatusPolicy: strPtr("strict"),
			TimeoutMS:    strPtr("1500"),
			LoggingLevel: strPtr(""),
		},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "compat" {
		t.Errorf("mode flag should win, got %s", cfg.Mode)
	}
	if cfg.Client.Host != "flag-host" || cfg.Client.Port != 2000 {
		t.Errorf("flags should win, got %s:%d", cfg.Client.Host, cfg.Client.Port)
	}
	if cfg.Client.StatusPolicy != StatusPolicyStrict {
		t.Errorf("expected strict from flag, got %s", cfg.Client.StatusPolicy)
	}
	if cfg.Client.TimeoutMS != 1500 {
		t.Errorf("expected 1500ms from flag, got %d", cfg.Client.TimeoutMS)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("empty flag should not override, got %s", cfg.Logging.Level)
	}
}

func TestLoad_UndecodedKeysWarn(t *testing.T) {
	path := writeConfig(t, `
[client]
hots = "typo"
`)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	if _, err := Load(LoaderOptions{ConfigPath: path, Logger: logger}); err != nil {
		t.Fatalf("undecoded keys should not fail the load: %v", err)
	}
	if !strings.Contains(buf.String(), "client.hots") {
		t.Errorf("expected warning naming client.hots, got %q", buf.String())
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		opts    LoaderOptions
		wantSub string
	}{
		{
			name:    "missing file",
			opts:    LoaderOptions{ConfigPath: filepath.Join(t.TempDir(), "nope.toml")},
			wantSub: "failed to read config file",
		},
		{
			name:    "invalid mode",
			opts:    LoaderOptions{ModeFlag: "interop"},
			wantSub: "invalid mode",
		},
		{
			name:    "port out of range",
			opts:    LoaderOptions{FlagOverrides: FlagOverrides{Port: strPtr("70000")}},
			wantSub: "client.port",
		},
		{
			name:    "non-numeric port",
			opts:    LoaderOptions{FlagOverrides: FlagOverrides{Port: strPtr("http")}},
			wantSub: "invalid port flag",
		},
		{
			name:    "host with scheme",
			opts:    LoaderOptions{FlagOverrides: FlagOverrides{Host: strPtr("http://x")}},
			wantSub: "client.host",
		},
		{
			name:    "bad status policy",
			opts:    LoaderOptions{FlagOverrides: FlagOverrides{StatusPolicy: strPtr("lenient")}},
			wantSub: "client.status_policy",
		},
		{
			name:    "bad level",
			opts:    LoaderOptions{FlagOverrides: FlagOverrides{LoggingLevel: strPtr("loud")}},
			wantSub: "logging.level",
		},
		{
			name:    "bad driver",
			opts:    LoaderOptions{FlagOverrides: FlagOverrides{StoreDriver: strPtr("redis")}},
			wantSub: "sandbox.store.driver",
		},
		{
			name:    "bad cache driver",
			opts:    LoaderOptions{FlagOverrides: FlagOverrides{CacheDriver: strPtr("memcached")}},
			wantSub: "sandbox.cache.driver",
		},
		{
			name:    "non-numeric rate limit",
			opts:    LoaderOptions{FlagOverrides: FlagOverrides{RateLimit: strPtr("many")}},
			wantSub: "invalid rate limit flag",
		},
		{
			name:    "negative rate limit",
			opts:    LoaderOptions{FlagOverrides: FlagOverrides{RateLimit: strPtr("-1")}},
			wantSub: "sandbox.ratelimit.requests_per_window",
		},
		{
			name: "rate limit driver without counters",
			opts: LoaderOptions{ConfigPath: writeConfig(t, `
[sandbox.ratelimit]
requests_per_window = 5
driver = "memcached"
`)},
			wantSub: "sandbox.ratelimit.driver",
		},
		{
			name: "rate limit without window",
			opts: LoaderOptions{ConfigPath: writeConfig(t, `
[sandbox.ratelimit]
requests_per_window = 5
window_seconds = -1
`)},
			wantSub: "sandbox.ratelimit.window_seconds",
		},
		{
			name:    "fail rate out of range",
			opts:    LoaderOptions{FlagOverrides: FlagOverrides{FailRate: strPtr("1.5")}},
			wantSub: "fail_rate",
		},
		{
			name:    "fail code not an error status",
			opts:    LoaderOptions{FlagOverrides: FlagOverrides{FailRate: strPtr("0.1"), FailCode: strPtr("200")}},
			wantSub: "fail_code",
		},
		{
			name:    "missing genesis",
			opts:    LoaderOptions{FlagOverrides: FlagOverrides{GenesisFile: strPtr(filepath.Join(t.TempDir(), "genesis.json"))}},
			wantSub: "genesis file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opts)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, `[client`)
	if _, err := Load(LoaderOptions{ConfigPath: path}); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
