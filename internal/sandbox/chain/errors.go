package chain

import (
	"errors"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store"
)

var (
	// ErrNotFound is returned for unknown receipts.
	ErrNotFound = store.ErrNotFound

	ErrInvalidTx         = errors.New("invalid transaction")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInsufficientFunds = errors.New("insufficient funds for value plus gas")
	ErrNonceMismatch     = errors.New("nonce does not match account nonce")
	ErrIntrinsicGas      = errors.New("gas limit below intrinsic gas")
	ErrKnownTransaction  = errors.New("known transaction")
	ErrInvalidGenesis    = errors.New("invalid genesis")
)
