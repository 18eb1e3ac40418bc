// Package sqlite implements a SQLite-based store driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/cfg"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Options are read from [sandbox.store.drivers.sqlite].
type Options struct {
	// DataDir holds the database file. Created if missing.
	DataDir string `mapstructure:"data_dir"`

	// File is the database file name inside DataDir.
	File string `mapstructure:"file"`
}

func (o *Options) ApplyDefaults() {
	if o.DataDir == "" {
		o.DataDir = ".ledger"
	}
	if o.File == "" {
		o.File = "ledger.db"
	}
}

// Driver implements store.Store using SQLite via GORM.
type Driver struct {
	path string
	db   *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(c *store.DriverConfig) (store.Store, error) {
	var opts Options
	unused, err := cfg.DecodeWithUnused(c.Options, &opts)
	if err != nil {
		return nil, fmt.Errorf("sqlite driver: %w", err)
	}
	if len(unused) > 0 {
		c.Logger.Warn("sqlite driver options contain unknown keys", "keys", unused)
	}

	return &Driver{
		path: filepath.Join(opts.DataDir, opts.File),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Path returns the database file path.
func (d *Driver) Path() string {
	return d.path
}

// Init opens the database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(d.path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	if err := db.WithContext(ctx).AutoMigrate(
		&store.Account{},
		&store.Receipt{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	d.db = nil
	return sqlDB.Close()
}

func (d *Driver) conn(ctx context.Context) (*gorm.DB, error) {
	if d.db == nil {
		return nil, store.ErrClosed
	}
	return d.db.WithContext(ctx), nil
}

// GetAccount retrieves an account by address.
func (d *Driver) GetAccount(ctx context.Context, address string) (*store.Account, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var account store.Account
	result := db.First(&account, "address = ?", address)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &account, nil
}

// ListAccounts returns all accounts ordered by address.
func (d *Driver) ListAccounts(ctx context.Context) ([]*store.Account, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var accounts []*store.Account
	if result := db.Order("address").Find(&accounts); result.Error != nil {
		return nil, result.Error
	}
	return accounts, nil
}

// PutAccount inserts or replaces an account.
func (d *Driver) PutAccount(ctx context.Context, account *store.Account) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	return upsertAccount(db, account)
}

func upsertAccount(db *gorm.DB, account *store.Account) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "nonce", "updated_at"}),
	}).Create(account).Error
}

// GetReceipt retrieves a receipt by transaction hash.
func (d *Driver) GetReceipt(ctx context.Context, txHash string) (*store.Receipt, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var receipt store.Receipt
	result := db.First(&receipt, "tx_hash = ?", txHash)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &receipt, nil
}

// Commit writes accounts and receipt in one transaction.
func (d *Driver) Commit(ctx context.Context, accounts []*store.Account, receipt *store.Receipt) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if receipt != nil {
			var count int64
			if err := tx.Model(&store.Receipt{}).Where("tx_hash = ?", receipt.TxHash).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return store.ErrAlreadyExists
			}
		}
		for _, a := range accounts {
			if err := upsertAccount(tx, a); err != nil {
				return err
			}
		}
		if receipt != nil {
			if err := tx.Create(receipt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
