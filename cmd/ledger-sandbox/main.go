// Package main is the entrypoint for ledger-sandbox, a local ledger server
// for developing against and testing the ledger client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/cache"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/config"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/http/server"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/metrics"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/ratelimit"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/api"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/chain"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store"

	// Register cache drivers
	_ "github.com/MahdiBaghbani/ledgerclient-go/internal/platform/cache/loader"

	// Register store drivers
	_ "github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store/json"
	_ "github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store/memory"
	_ "github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store/sqlite"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: strict, compat, or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	genesisFile := flag.String("genesis", "", "Genesis JSON file seeding account balances (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: memory, sqlite, or json (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Receipt cache driver: off, memory, valkey, or redis (overrides config)")
	rateLimit := flag.String("rate-limit", "", "Requests allowed per client per window, 0 disables (overrides config)")
	latencyMS := flag.String("latency-ms", "", "Artificial latency per request in milliseconds (overrides config)")
	fail := flag.String("fail", "", "Failure injection as rate=<0..1>,code=<status> (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	loggingFormat := flag.String("logging-format", "", "Log format: json or text (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	failRate, failCode, err := parseFail(*fail)
	if err != nil {
		bootstrapLogger.Error("invalid -fail flag", "error", err)
		os.Exit(2)
	}

	// Load config with precedence: mode preset -> TOML file -> CLI flags
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:    listenAddr,
			GenesisFile:   genesisFile,
			StoreDriver:   storeDriver,
			CacheDriver:   cacheDriver,
			RateLimit:     rateLimit,
			LatencyMS:     latencyMS,
			FailRate:      failRate,
			FailCode:      failCode,
			LoggingLevel:  loggingLevel,
			LoggingFormat: loggingFormat,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logutil.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	logger.Info("effective configuration",
		"mode", cfg.Mode,
		"listen_addr", cfg.Sandbox.ListenAddr,
		"store_driver", cfg.Sandbox.Store.Driver,
		"cache_driver", cfg.Sandbox.Cache.Driver,
		"genesis_file", cfg.Sandbox.GenesisFile,
		"max_connections", cfg.Sandbox.MaxConnections,
		"rate_limit", cfg.Sandbox.RateLimit.RequestsPerWindow,
	)

	// Metrics registry (Go runtime and process collectors plus sandbox metrics)
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	serverMetrics := metrics.NewServerMetrics(reg)

	// Create store
	// Passes driver-specific config from [sandbox.store.drivers.<driver>] section
	driver := cfg.Sandbox.Store.Driver
	if driver == "" {
		driver = "memory"
	}
	st, err := store.New(&store.DriverConfig{
		Driver:  driver,
		Options: cfg.Sandbox.Store.Drivers[driver],
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	if err := st.Init(context.Background()); err != nil {
		logger.Error("failed to initialize store", "driver", driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	chainOpts := []chain.Option{
		chain.WithLogger(logger),
		chain.WithAccountsGauge(serverMetrics),
	}

	// Create receipt cache if configured
	// Passes driver-specific config from [sandbox.cache.drivers.<driver>] section
	if cfg.Sandbox.Cache.Enabled() {
		receiptCache, err := cache.NewFromConfig(cfg.Sandbox.Cache.Driver, cfg.Sandbox.Cache.Drivers, logger)
		if err != nil {
			logger.Error("failed to create cache", "driver", cfg.Sandbox.Cache.Driver, "error", err)
			os.Exit(1)
		}
		defer receiptCache.Close()
		chainOpts = append(chainOpts, chain.WithReceiptCache(receiptCache, cfg.Sandbox.Cache.TTL()))
	}

	ledgerChain := chain.New(st, driver, chainOpts...)

	if cfg.Sandbox.GenesisFile != "" {
		genesis, err := chain.ReadGenesisFile(cfg.Sandbox.GenesisFile)
		if err != nil {
			logger.Error("failed to read genesis", "path", cfg.Sandbox.GenesisFile, "error", err)
			os.Exit(1)
		}
		if err := ledgerChain.ApplyGenesis(context.Background(), genesis); err != nil {
			logger.Error("failed to apply genesis", "error", err)
			os.Exit(1)
		}
	}

	var serverOpts []server.Option

	// Create rate limiter if configured
	// Counters live in the driver named by [sandbox.ratelimit], configured from
	// [sandbox.cache.drivers.<driver>]
	if rl := cfg.Sandbox.RateLimit; rl.Enabled() {
		counterCache, err := cache.NewFromConfig(rl.Driver, cfg.Sandbox.Cache.Drivers, logger)
		if err != nil {
			logger.Error("failed to create rate limit cache", "driver", rl.Driver, "error", err)
			os.Exit(1)
		}
		defer counterCache.Close()
		counter, ok := counterCache.(cache.Counter)
		if !ok {
			logger.Error("cache driver does not support counters", "driver", rl.Driver)
			os.Exit(1)
		}
		serverOpts = append(serverOpts, server.WithRateLimiter(ratelimit.New(counter, rl, logger)))
	}

	// Create and start server
	srv, err := server.New(&cfg.Sandbox, logger, api.NewHandler(ledgerChain, 0), serverMetrics, reg, serverOpts...)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("server started, press Ctrl+C to stop")

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			st.Close()
			os.Exit(1)
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// parseFail splits a "rate=0.1,code=503" flag into the rate and code
// overrides. An empty value leaves both untouched.
func parseFail(raw string) (rate, code *string, err error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, nil, fmt.Errorf("invalid fail segment %q", part)
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "rate":
			if _, err := strconv.ParseFloat(val, 64); err != nil {
				return nil, nil, fmt.Errorf("invalid fail rate %q: %w", val, err)
			}
			rate = &val
		case "code":
			if _, err := strconv.Atoi(val); err != nil {
				return nil, nil, fmt.Errorf("invalid fail code %q: %w", val, err)
			}
			code = &val
		default:
			return nil, nil, fmt.Errorf("unknown fail key %q", key)
		}
	}
	return rate, code, nil
}
