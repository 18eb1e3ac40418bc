package ledger

import (
	"math/big"
)

// SendTxArgs is the body of Call and SendTx, and the decoded content of a
// raw transaction in the sandbox encoding.
type SendTxArgs struct {
	From     string   `json:"from" validate:"required,eth_addr"`
	To       *string  `json:"to,omitempty" validate:"omitempty,eth_addr"`
	Gas      *big.Int `json:"gas,omitempty"`
	GasPrice *big.Int `json:"gasPrice,omitempty"`
	Value    *big.Int `json:"value,omitempty"`
	Data     string   `json:"data,omitempty" validate:"omitempty,hexadecimal"`
	Nonce    *uint64  `json:"nonce,omitempty"`
}

// Account is the body returned by GetAccount.
type Account struct {
	Address string   `json:"address"`
	Balance *big.Int `json:"balance"`
	Nonce   uint64   `json:"nonce"`
}

// AccountList is the body returned by GetAccounts.
type AccountList struct {
	Accounts []Account `json:"accounts"`
}

// TxHashResult is the body returned by SendTx and SendRawTx.
type TxHashResult struct {
	TxHash string `json:"txHash"`
}

// CallResult is the body returned by Call.
type CallResult struct {
	Data string `json:"data"`
}

// Receipt is the body returned by GetReceipt.
type Receipt struct {
	TransactionHash   string   `json:"transactionHash"`
	From              string   `json:"from"`
	To                *string  `json:"to"`
	Value             *big.Int `json:"value"`
	GasUsed           uint64   `json:"gasUsed"`
	CumulativeGasUsed uint64   `json:"cumulativeGasUsed"`
	ContractAddress   *string  `json:"contractAddress"`
	Logs              []string `json:"logs"`
	Status            uint64   `json:"status"`
}

// Info is the body returned by Info: a flat string map of node status.
type Info map[string]string
