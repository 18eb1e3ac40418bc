// Package json implements a JSON file-based store driver.
// It uses atomic writes (temp file + fsync + rename) and in-process locking.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/cfg"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store"
)

func init() {
	store.Register("json", NewDriver)
}

// Options are read from [sandbox.store.drivers.json].
type Options struct {
	// DataDir holds the state file. Created if missing.
	DataDir string `mapstructure:"data_dir"`

	// File is the state file name inside DataDir.
	File string `mapstructure:"file"`
}

func (o *Options) ApplyDefaults() {
	if o.DataDir == "" {
		o.DataDir = ".ledger"
	}
	if o.File == "" {
		o.File = "ledger.json"
	}
}

// state is the on-disk document.
type state struct {
	Accounts map[string]store.Account `json:"accounts"`
	Receipts map[string]store.Receipt `json:"receipts"`
}

// Driver implements store.Store on a single JSON file. Every write
// rewrites the whole file.
type Driver struct {
	path   string
	mu     sync.RWMutex
	closed bool
	state  state
}

// NewDriver creates a new JSON driver instance.
func NewDriver(c *store.DriverConfig) (store.Store, error) {
	var opts Options
	unused, err := cfg.DecodeWithUnused(c.Options, &opts)
	if err != nil {
		return nil, fmt.Errorf("json driver: %w", err)
	}
	if len(unused) > 0 {
		c.Logger.Warn("json driver options contain unknown keys", "keys", unused)
	}

	return &Driver{
		path: filepath.Join(opts.DataDir, opts.File),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "json"
}

// Path returns the state file path.
func (d *Driver) Path() string {
	return d.path
}

// Init loads the state file, if present.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(d.path), 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	d.state = state{
		Accounts: make(map[string]store.Account),
		Receipts: make(map[string]store.Receipt),
	}
	data, err := os.ReadFile(d.path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("failed to read state: %w", err)
	default:
		if err := json.Unmarshal(data, &d.state); err != nil {
			return fmt.Errorf("failed to parse state %s: %w", d.path, err)
		}
		if d.state.Accounts == nil {
			d.state.Accounts = make(map[string]store.Account)
		}
		if d.state.Receipts == nil {
			d.state.Receipts = make(map[string]store.Receipt)
		}
	}

	d.closed = false
	return nil
}

// Close releases resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// save atomically writes the state file.
// Pattern: write to temp file, fsync, rename.
func (d *Driver) save() error {
	tempPath := d.path + ".tmp"

	data, err := json.MarshalIndent(d.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, d.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (d *Driver) GetAccount(ctx context.Context, address string) (*store.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	a, ok := d.state.Accounts[address]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (d *Driver) ListAccounts(ctx context.Context) ([]*store.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	out := make([]*store.Account, 0, len(d.state.Accounts))
	for _, a := range d.state.Accounts {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (d *Driver) PutAccount(ctx context.Context, account *store.Account) error {
	return d.Commit(ctx, []*store.Account{account}, nil)
}

func (d *Driver) GetReceipt(ctx context.Context, txHash string) (*store.Receipt, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	r, ok := d.state.Receipts[txHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

// Commit applies the writes in memory, persists the file, and rolls the
// in-memory state back if the file cannot be written.
func (d *Driver) Commit(ctx context.Context, accounts []*store.Account, receipt *store.Receipt) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	if receipt != nil {
		if _, exists := d.state.Receipts[receipt.TxHash]; exists {
			return store.ErrAlreadyExists
		}
	}

	prev := make(map[string]*store.Account, len(accounts))
	for _, a := range accounts {
		if _, seen := prev[a.Address]; seen {
			continue
		}
		if old, ok := d.state.Accounts[a.Address]; ok {
			prev[a.Address] = &old
		} else {
			prev[a.Address] = nil
		}
	}

	for _, a := range accounts {
		d.state.Accounts[a.Address] = *a
	}
	if receipt != nil {
		d.state.Receipts[receipt.TxHash] = *receipt
	}

	if err := d.save(); err != nil {
		for addr, old := range prev {
			if old == nil {
				delete(d.state.Accounts, addr)
			} else {
				d.state.Accounts[addr] = *old
			}
		}
		if receipt != nil {
			delete(d.state.Receipts, receipt.TxHash)
		}
		return err
	}
	return nil
}
