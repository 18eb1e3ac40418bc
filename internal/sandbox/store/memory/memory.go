// Package memory implements an in-process store driver. State is lost when
// the sandbox exits.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver keeps accounts and receipts in maps.
type Driver struct {
	mu       sync.RWMutex
	closed   bool
	accounts map[string]store.Account
	receipts map[string]store.Receipt
}

// NewDriver creates a memory driver. It takes no options.
func NewDriver(cfg *store.DriverConfig) (store.Store, error) {
	if len(cfg.Options) > 0 {
		keys := make([]string, 0, len(cfg.Options))
		for k := range cfg.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		cfg.Logger.Warn("memory driver ignores options", "keys", keys)
	}
	return &Driver{}, nil
}

func (d *Driver) Name() string { return "memory" }

func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts = make(map[string]store.Account)
	d.receipts = make(map[string]store.Receipt)
	d.closed = false
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Driver) GetAccount(ctx context.Context, address string) (*store.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	a, ok := d.accounts[address]
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
	out := make([]*store.Account, 0, len(d.accounts))
	for _, a := range d.accounts {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (d *Driver) PutAccount(ctx context.Context, account *store.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	d.accounts[account.Address] = *account
	return nil
}

func (d *Driver) GetReceipt(ctx context.Context, txHash string) (*store.Receipt, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	r, ok := d.receipts[txHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (d *Driver) Commit(ctx context.Context, accounts []*store.Account, receipt *store.Receipt) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	if receipt != nil {
		if _, exists := d.receipts[receipt.TxHash]; exists {
			return store.ErrAlreadyExists
		}
	}
	for _, a := range accounts {
		d.accounts[a.Address] = *a
	}
	if receipt != nil {
		d.receipts[receipt.TxHash] = *receipt
	}
	return nil
}
