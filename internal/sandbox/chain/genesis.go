package chain

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
)

// Genesis seeds account balances. Balances are decimal or 0x-prefixed hex.
//
//	{"alloc": {"0x629007eb99ff5c3539ada8a5800847eacfc25727": {"balance": "1337000000000000000000"}}}
type Genesis struct {
	Alloc map[string]GenesisAccount `json:"alloc"`
}

type GenesisAccount struct {
	Balance string `json:"balance"`
}

// ReadGenesis parses a genesis document.
func ReadGenesis(r io.Reader) (*Genesis, error) {
	var g Genesis
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGenesis, err)
	}
	for addr, acct := range g.Alloc {
		if _, err := normalizeAddress(addr); err != nil {
			return nil, fmt.Errorf("%w: alloc key %q: %v", ErrInvalidGenesis, addr, err)
		}
		if _, ok := parseAmount(acct.Balance); !ok {
			return nil, fmt.Errorf("%w: balance %q for %s", ErrInvalidGenesis, acct.Balance, addr)
		}
	}
	return &g, nil
}

// ReadGenesisFile parses the genesis document at path.
func ReadGenesisFile(path string) (*Genesis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadGenesis(f)
}

// parseAmount accepts non-negative decimal or 0x-hex integers. Empty is zero.
func parseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return new(big.Int), true
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
