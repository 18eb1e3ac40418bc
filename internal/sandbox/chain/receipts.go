package chain

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/cache"
	"github.com/MahdiBaghbani/ledgerclient-go/pkg/ledger"
)

const receiptKeyPrefix = "receipt:"

// cachedReceipt looks hash up in the receipt cache. Cache failures are
// logged and treated as misses.
func (c *Chain) cachedReceipt(ctx context.Context, hash string) (ledger.Receipt, bool) {
	if c.receipts == nil {
		return ledger.Receipt{}, false
	}
	b, err := c.receipts.Get(ctx, receiptKeyPrefix+hash)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			c.log.Warn("receipt cache get failed", "tx_hash", hash, "error", err)
		}
		return ledger.Receipt{}, false
	}
	var r ledger.Receipt
	if err := json.Unmarshal(b, &r); err != nil {
		c.log.Warn("receipt cache entry unreadable", "tx_hash", hash, "error", err)
		return ledger.Receipt{}, false
	}
	return r, true
}

func (c *Chain) cacheReceipt(ctx context.Context, r ledger.Receipt) {
	if c.receipts == nil {
		return
	}
	b, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.receipts.Set(ctx, receiptKeyPrefix+r.TransactionHash, b, c.receiptTTL); err != nil {
		c.log.Warn("receipt cache set failed", "tx_hash", r.TransactionHash, "error", err)
	}
}
