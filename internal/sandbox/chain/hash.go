package chain

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// keccak256 returns the legacy Keccak-256 digest used by Ethereum.
func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

func hexString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// canonicalTx is the encoding hashed for SendTx. Field order is fixed by
// the struct, and the effective nonce is always present.
type canonicalTx struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Value    *big.Int `json:"value"`
	Gas      uint64   `json:"gas"`
	GasPrice *big.Int `json:"gasPrice"`
	Data     string   `json:"data"`
	Nonce    uint64   `json:"nonce"`
}

func (t canonicalTx) hash() string {
	b, _ := json.Marshal(t) // only strings, numbers and big.Ints
	return hexString(keccak256(b))
}

// contractAddress derives the address of a contract created by sender at nonce.
func contractAddress(sender []byte, nonce uint64) string {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return hexString(keccak256(sender, n[:])[12:])
}
