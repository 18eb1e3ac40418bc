// Package store provides persistence for the sandbox ledger and the driver
// registry that selects a backend by name.
package store

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the lifecycle of a persistence backend.
type Driver interface {
	// Init prepares the backend (create tables, open files).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite, json).
	Name() string
}

// LedgerStore holds accounts and receipts.
// Implementations must be safe for concurrent use.
type LedgerStore interface {
	GetAccount(ctx context.Context, address string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
	PutAccount(ctx context.Context, account *Account) error

	GetReceipt(ctx context.Context, txHash string) (*Receipt, error)

	// Commit atomically upserts accounts and inserts receipt. It returns
	// ErrAlreadyExists, and writes nothing, if the receipt hash is taken.
	Commit(ctx context.Context, accounts []*Account, receipt *Receipt) error
}

// Store is a driver that persists ledger state.
type Store interface {
	Driver
	LedgerStore
}

// Account is a persisted account. Balance is a base-10 integer string so
// values beyond 64 bits survive every backend.
type Account struct {
	Address   string `json:"address" gorm:"primaryKey"`
	Balance   string `json:"balance"`
	Nonce     uint64 `json:"nonce"`
	UpdatedAt int64  `json:"updated_at"`
}

// Receipt is a persisted transaction outcome.
type Receipt struct {
	TxHash          string `json:"tx_hash" gorm:"primaryKey"`
	From            string `json:"from" gorm:"index"`
	To              string `json:"to"`
	ContractAddress string `json:"contract_address"`
	Value           string `json:"value"`
	Data            string `json:"data"`
	Nonce           uint64 `json:"nonce"`
	GasUsed         uint64 `json:"gas_used"`
	Status          uint64 `json:"status"`
	CreatedAt       int64  `json:"created_at"`
}
