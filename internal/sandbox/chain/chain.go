// Package chain implements the sandbox ledger: account balances and nonces,
// value transfers, contract-address derivation and receipts.
//
// There is no EVM. Calls are dry runs that check the sender can pay, and
// transactions move value and record a receipt.
package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/cache"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store"
	"github.com/MahdiBaghbani/ledgerclient-go/pkg/ledger"
)

// Gas costs charged per transaction.
const (
	TxGas               = 21000
	TxGasContractCreate = 53000
	TxDataGasPerByte    = 16
)

var addressRE = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// AccountsGauge is notified of the account count after every change.
type AccountsGauge interface {
	SetAccounts(n int)
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the chain logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) { c.log = logutil.NoopIfNil(l) }
}

// WithAccountsGauge publishes the account count, typically to Prometheus.
func WithAccountsGauge(g AccountsGauge) Option {
	return func(c *Chain) { c.gauge = g }
}

// WithClock overrides time.Now for receipts.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// WithReceiptCache serves receipts from rc before the store. Receipts never
// change once committed, so entries are never invalidated.
func WithReceiptCache(rc cache.Cache, ttl time.Duration) Option {
	return func(c *Chain) {
		c.receipts = rc
		c.receiptTTL = ttl
	}
}

// Chain applies transactions to a store. All methods are serialised by one
// mutex, so a transaction observes and commits a consistent state.
type Chain struct {
	mu       sync.Mutex
	store    store.LedgerStore
	name     string
	validate *validator.Validate
	log      *slog.Logger
	gauge    AccountsGauge
	now      func() time.Time
	txCount  uint64

	receipts   cache.Cache
	receiptTTL time.Duration
}

// New returns a chain backed by s. name is reported by Info as the store driver.
func New(s store.LedgerStore, name string, opts ...Option) *Chain {
	c := &Chain{
		store:    s,
		name:     name,
		validate: validator.New(),
		log:      logutil.Noop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ApplyGenesis credits the genesis balances. Accounts that already exist,
// for example in a persistent store, are left untouched.
func (c *Chain) ApplyGenesis(ctx context.Context, g *Genesis) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var created []*store.Account
	for addr, alloc := range g.Alloc {
		address, err := normalizeAddress(addr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGenesis, err)
		}
		if _, err := c.store.GetAccount(ctx, address); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		balance, ok := parseAmount(alloc.Balance)
		if !ok {
			return fmt.Errorf("%w: balance %q for %s", ErrInvalidGenesis, alloc.Balance, address)
		}
		created = append(created, &store.Account{
			Address:   address,
			Balance:   balance.String(),
			UpdatedAt: c.now().Unix(),
		})
	}
	if err := c.store.Commit(ctx, created, nil); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	c.log.Info("genesis applied", "accounts", len(created))
	return c.publishAccounts(ctx)
}

// Account returns the account at address. Unknown addresses have a zero
// balance and nonce.
func (c *Chain) Account(ctx context.Context, address string) (ledger.Account, error) {
	address, err := normalizeAddress(address)
	if err != nil {
		return ledger.Account{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	a, _, err := c.loadAccount(ctx, address)
	if err != nil {
		return ledger.Account{}, err
	}
	return toAPIAccount(a), nil
}

// Accounts returns every known account.
func (c *Chain) Accounts(ctx context.Context) (ledger.AccountList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, err := c.store.ListAccounts(ctx)
	if err != nil {
		return ledger.AccountList{}, err
	}
	out := ledger.AccountList{Accounts: make([]ledger.Account, 0, len(list))}
	for _, a := range list {
		out.Accounts = append(out.Accounts, toAPIAccount(a))
	}
	return out, nil
}

// Call checks that args could be applied without changing any state.
func (c *Chain) Call(ctx context.Context, args ledger.SendTxArgs) (ledger.CallResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.plan(ctx, args); err != nil {
		return ledger.CallResult{}, err
	}
	return ledger.CallResult{Data: "0x"}, nil
}

// SendTx applies args and returns its hash.
func (c *Chain) SendTx(ctx context.Context, args ledger.SendTxArgs) (ledger.TxHashResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.plan(ctx, args)
	if err != nil {
		return ledger.TxHashResult{}, err
	}
	hash := p.canonical().hash()
	if err := c.commit(ctx, p, hash); err != nil {
		return ledger.TxHashResult{}, err
	}
	return ledger.TxHashResult{TxHash: hash}, nil
}

// SendRawTx applies a raw transaction: a 0x-hex string whose bytes are a
// JSON SendTxArgs. The hash is Keccak-256 over the decoded bytes, so the
// same raw transaction cannot be applied twice.
func (c *Chain) SendRawTx(ctx context.Context, raw []byte) (ledger.TxHashResult, error) {
	decoded, err := ledger.DecodeHex(string(raw))
	if err != nil {
		return ledger.TxHashResult{}, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	var args ledger.SendTxArgs
	if err := (ledger.JSONCodec{}).Decode(decoded, &args); err != nil {
		return ledger.TxHashResult{}, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.plan(ctx, args)
	if err != nil {
		return ledger.TxHashResult{}, err
	}
	hash := hexString(keccak256(decoded))
	if err := c.commit(ctx, p, hash); err != nil {
		return ledger.TxHashResult{}, err
	}
	return ledger.TxHashResult{TxHash: hash}, nil
}

// Receipt returns the receipt for hash.
func (c *Chain) Receipt(ctx context.Context, hash string) (ledger.Receipt, error) {
	hash = strings.ToLower(hash)
	if r, ok := c.cachedReceipt(ctx, hash); ok {
		return r, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored, err := c.store.GetReceipt(ctx, hash)
	if err != nil {
		return ledger.Receipt{}, err
	}
	r := toAPIReceipt(stored)
	c.cacheReceipt(ctx, r)
	return r, nil
}

// Info reports node status.
func (c *Chain) Info(ctx context.Context) (ledger.Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, err := c.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.Info{
		"type":         "sandbox",
		"store":        c.name,
		"accounts":     strconv.Itoa(len(list)),
		"transactions": strconv.FormatUint(c.txCount, 10),
	}, nil
}

// txPlan is a validated transaction with its state changes computed.
type txPlan struct {
	args     ledger.SendTxArgs
	sender   *store.Account
	target   *store.Account // recipient or created contract
	creates  bool
	value    *big.Int
	gas      uint64
	gasPrice *big.Int
	gasUsed  uint64
	nonce    uint64
}

func (p *txPlan) canonical() canonicalTx {
	to := ""
	if p.args.To != nil {
		to = strings.ToLower(*p.args.To)
	}
	return canonicalTx{
		From:     p.sender.Address,
		To:       to,
		Value:    p.value,
		Gas:      p.gas,
		GasPrice: p.gasPrice,
		Data:     strings.ToLower(p.args.Data),
		Nonce:    p.nonce,
	}
}

// plan validates args against current state. Callers hold c.mu.
func (c *Chain) plan(ctx context.Context, args ledger.SendTxArgs) (*txPlan, error) {
	if err := c.validate.Struct(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}

	from := strings.ToLower(args.From)
	sender, _, err := c.loadAccount(ctx, from)
	if err != nil {
		return nil, err
	}

	p := &txPlan{
		args:     args,
		sender:   sender,
		value:    amountOrZero(args.Value),
		gasPrice: amountOrZero(args.GasPrice),
		nonce:    sender.Nonce,
	}
	if p.value.Sign() < 0 || p.gasPrice.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value or gas price", ErrInvalidTx)
	}
	if args.Nonce != nil && *args.Nonce != sender.Nonce {
		return nil, fmt.Errorf("%w: got %d, account has %d", ErrNonceMismatch, *args.Nonce, sender.Nonce)
	}

	data, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(args.Data, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrInvalidTx, err)
	}

	p.creates = args.To == nil
	p.gasUsed = TxGas
	if p.creates {
		p.gasUsed = TxGasContractCreate
	}
	p.gasUsed += uint64(len(data)) * TxDataGasPerByte

	p.gas = p.gasUsed
	if args.Gas != nil {
		if !args.Gas.IsUint64() || args.Gas.Uint64() < p.gasUsed {
			return nil, fmt.Errorf("%w: have %s, need %d", ErrIntrinsicGas, args.Gas, p.gasUsed)
		}
		p.gas = args.Gas.Uint64()
	}

	balance, _ := parseAmount(sender.Balance)
	if balance.Cmp(p.cost()) < 0 {
		return nil, fmt.Errorf("%w: balance %s, cost %s", ErrInsufficientFunds, balance, p.cost())
	}

	var targetAddr string
	if p.creates {
		raw, _ := hex.DecodeString(from[2:])
		targetAddr = contractAddress(raw, p.nonce)
	} else {
		targetAddr = strings.ToLower(*args.To)
	}
	if targetAddr == from {
		p.target = sender
	} else {
		p.target, _, err = c.loadAccount(ctx, targetAddr)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// cost is value plus the gas actually charged.
func (p *txPlan) cost() *big.Int {
	fee := new(big.Int).Mul(new(big.Int).SetUint64(p.gasUsed), p.gasPrice)
	return fee.Add(fee, p.value)
}

// commit applies p and records its receipt under hash. Callers hold c.mu.
func (c *Chain) commit(ctx context.Context, p *txPlan, hash string) error {
	now := c.now().Unix()

	senderBal, _ := parseAmount(p.sender.Balance)
	senderBal.Sub(senderBal, p.cost())

	sender := *p.sender
	sender.Nonce++
	sender.UpdatedAt = now

	accounts := []*store.Account{&sender}
	if p.target.Address == sender.Address {
		// Self transfer: only the fee leaves the account.
		senderBal.Add(senderBal, p.value)
	} else {
		targetBal, _ := parseAmount(p.target.Balance)
		target := *p.target
		target.Balance = targetBal.Add(targetBal, p.value).String()
		target.UpdatedAt = now
		accounts = append(accounts, &target)
	}
	sender.Balance = senderBal.String()

	receipt := &store.Receipt{
		TxHash:    hash,
		From:      sender.Address,
		Value:     p.value.String(),
		Data:      p.args.Data,
		Nonce:     p.nonce,
		GasUsed:   p.gasUsed,
		Status:    1,
		CreatedAt: now,
	}
	if p.creates {
		receipt.ContractAddress = p.target.Address
	} else {
		receipt.To = p.target.Address
	}

	if err := c.store.Commit(ctx, accounts, receipt); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("%w: %s", ErrKnownTransaction, hash)
		}
		return err
	}
	c.txCount++
	c.log.Debug("transaction applied", "tx_hash", hash, "from", sender.Address, "value", receipt.Value)
	return c.publishAccounts(ctx)
}

// loadAccount returns the stored account or a zero account.
func (c *Chain) loadAccount(ctx context.Context, address string) (*store.Account, bool, error) {
	a, err := c.store.GetAccount(ctx, address)
	switch {
	case err == nil:
		return a, true, nil
	case errors.Is(err, store.ErrNotFound):
		return &store.Account{Address: address, Balance: "0"}, false, nil
	default:
		return nil, false, err
	}
}

func (c *Chain) publishAccounts(ctx context.Context) error {
	if c.gauge == nil {
		return nil
	}
	list, err := c.store.ListAccounts(ctx)
	if err != nil {
		return err
	}
	c.gauge.SetAccounts(len(list))
	return nil
}

func normalizeAddress(s string) (string, error) {
	if !addressRE.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return strings.ToLower(s), nil
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func toAPIAccount(a *store.Account) ledger.Account {
	balance, ok := parseAmount(a.Balance)
	if !ok {
		balance = new(big.Int)
	}
	return ledger.Account{
		Address: a.Address,
		Balance: balance,
		Nonce:   a.Nonce,
	}
}

func toAPIReceipt(r *store.Receipt) ledger.Receipt {
	value, _ := parseAmount(r.Value)
	out := ledger.Receipt{
		TransactionHash:   r.TxHash,
		From:              r.From,
		Value:             value,
		GasUsed:           r.GasUsed,
		CumulativeGasUsed: r.GasUsed,
		Logs:              []string{},
		Status:            r.Status,
	}
	if r.To != "" {
		to := r.To
		out.To = &to
	}
	if r.ContractAddress != "" {
		ca := r.ContractAddress
		out.ContractAddress = &ca
	}
	return out
}
