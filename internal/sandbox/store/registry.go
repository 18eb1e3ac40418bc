package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/logutil"
)

// DriverConfig selects and configures a driver.
type DriverConfig struct {
	// Driver is the driver name: memory, sqlite, or json.
	Driver string

	// Options is the raw [sandbox.store.drivers.<name>] table, decoded by
	// the driver with cfg.Decode.
	Options map[string]any

	// Logger receives driver warnings such as unknown option keys.
	Logger *slog.Logger
}

// DriverFactory is a function that creates a driver instance.
type DriverFactory func(cfg *DriverConfig) (Store, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// New creates a driver instance based on the configuration.
// An empty driver name selects memory.
func New(cfg *DriverConfig) (Store, error) {
	name := cfg.Driver
	if name == "" {
		name = "memory"
	}

	driversMu.RLock()
	factory, ok := drivers[name]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown driver: %s", name)
	}

	c := *cfg
	c.Driver = name
	c.Logger = logutil.NoopIfNil(cfg.Logger)
	return factory(&c)
}

// AvailableDrivers returns the registered driver names, sorted.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
