// Package storetest provides the shared conformance suite for store drivers.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store"
)

// TestAccount returns a fixture account.
func TestAccount(address, balance string) *store.Account {
	return &store.Account{
		Address:   address,
		Balance:   balance,
		UpdatedAt: time.Now().Unix(),
	}
}

// TestReceipt returns a fixture receipt.
func TestReceipt(hash string) *store.Receipt {
	return &store.Receipt{
		TxHash:    hash,
		From:      "0x629007eb99ff5c3539ada8a5800847eacfc25727",
		To:        "0x1dead00000000000000000000000000000000001",
		Value:     "1000",
		GasUsed:   21000,
		Status:    1,
		CreatedAt: time.Now().Unix(),
	}
}

// RunDriverTests runs the standard suite against a fresh driver built from cfg.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	ctx := context.Background()

	s, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	defer s.Close()

	if err := s.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}

	if s.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, s.Name())
	}

	t.Run("AccountCRUD", func(t *testing.T) {
		TestAccountCRUD(t, ctx, s)
	})

	t.Run("CommitIsAtomic", func(t *testing.T) {
		TestCommitIsAtomic(t, ctx, s)
	})
}

// TestAccountCRUD checks account get, put, list and not-found handling.
func TestAccountCRUD(t *testing.T, ctx context.Context, s store.LedgerStore) {
	if _, err := s.GetAccount(ctx, "0xmissing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Balances wider than 64 bits must round-trip.
	big := "123456789012345678901234567890"
	if err := s.PutAccount(ctx, TestAccount("0xbb", big)); err != nil {
		t.Fatalf("PutAccount failed: %v", err)
	}
	if err := s.PutAccount(ctx, TestAccount("0xaa", "5")); err != nil {
		t.Fatalf("PutAccount failed: %v", err)
	}

	got, err := s.GetAccount(ctx, "0xbb")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.Balance != big {
		t.Errorf("expected balance %s, got %s", big, got.Balance)
	}

	// Upsert
	got.Nonce = 7
	got.Balance = "1"
	if err := s.PutAccount(ctx, got); err != nil {
		t.Fatalf("PutAccount (update) failed: %v", err)
	}
	got, _ = s.GetAccount(ctx, "0xbb")
	if got.Nonce != 7 || got.Balance != "1" {
		t.Errorf("update not applied: %+v", got)
	}

	list, err := s.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts failed: %v", err)
	}
	if len(list) < 2 || list[0].Address != "0xaa" || list[1].Address != "0xbb" {
		t.Errorf("expected accounts ordered by address, got %+v", list)
	}
}

// TestCommitIsAtomic checks that a duplicate receipt aborts the whole commit.
func TestCommitIsAtomic(t *testing.T, ctx context.Context, s store.LedgerStore) {
	sender := TestAccount("0xc1", "100")
	receipt := TestReceipt("0xhash1")

	if err := s.Commit(ctx, []*store.Account{sender}, receipt); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	got, err := s.GetReceipt(ctx, "0xhash1")
	if err != nil {
		t.Fatalf("GetReceipt failed: %v", err)
	}
	if got.Value != "1000" || got.GasUsed != 21000 || got.Status != 1 {
		t.Errorf("unexpected receipt %+v", got)
	}

	changed := TestAccount("0xc1", "0")
	if err := s.Commit(ctx, []*store.Account{changed}, TestReceipt("0xhash1")); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	acct, err := s.GetAccount(ctx, "0xc1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if acct.Balance != "100" {
		t.Errorf("rejected commit leaked account write: balance %s", acct.Balance)
	}

	if _, err := s.GetReceipt(ctx, "0xnope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
