package cli

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MahdiBaghbani/ledgerclient-go/pkg/ledger"
)

// txFlags builds a SendTxArgs payload when no positional payload is given.
type txFlags struct {
	from     string
	to       string
	value    string
	gas      string
	gasPrice string
	data     string
	nonce    int64
}

func (f *txFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.from, "from", "", "Sender address")
	fs.StringVar(&f.to, "to", "", "Recipient address; omit to create a contract")
	fs.StringVar(&f.value, "value", "", "Value to transfer (decimal or 0x hex)")
	fs.StringVar(&f.gas, "gas", "", "Gas limit (decimal or 0x hex)")
	fs.StringVar(&f.gasPrice, "gas-price", "", "Gas price (decimal or 0x hex)")
	fs.StringVar(&f.data, "data", "", "Call data as 0x hex")
	fs.Int64Var(&f.nonce, "nonce", -1, "Sender nonce; negative leaves it to the node")
}

func (f *txFlags) args() (ledger.SendTxArgs, error) {
	if f.from == "" {
		return ledger.SendTxArgs{}, errors.New("--from is required when no payload argument is given")
	}
	a := ledger.SendTxArgs{From: f.from, Data: f.data}
	if f.to != "" {
		to := f.to
		a.To = &to
	}
	var err error
	if a.Value, err = parseBig("value", f.value); err != nil {
		return a, err
	}
	if a.Gas, err = parseBig("gas", f.gas); err != nil {
		return a, err
	}
	if a.GasPrice, err = parseBig("gas-price", f.gasPrice); err != nil {
		return a, err
	}
	if f.nonce >= 0 {
		n := uint64(f.nonce)
		a.Nonce = &n
	}
	return a, nil
}

func parseBig(name, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid --%s %q", name, s)
	}
	return v, nil
}

// payload resolves the transaction payload from args[0] or, when absent,
// from the flags encoded with codec.
func (f *txFlags) payload(cmd *cobra.Command, args []string, codec ledger.Codec) (ledger.Payload, error) {
	if len(args) == 1 {
		return readPayload(cmd, args[0])
	}
	a, err := f.args()
	if err != nil {
		return nil, err
	}
	return codec.Encode(a)
}

type sendFunc func(c *ledger.Client, ctx context.Context, tx ledger.Payload) ([]byte, error)

func newPayloadCmd(o *rootOptions, use, short string, codec ledger.Codec, send sendFunc) *cobra.Command {
	f := &txFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := f.payload(cmd, args, codec)
			if err != nil {
				return err
			}
			c, err := o.client(cmd)
			if err != nil {
				return err
			}
			body, err := send(c, cmd.Context(), tx)
			return printBody(cmd, body, err)
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newCallCmd(o *rootOptions) *cobra.Command {
	return newPayloadCmd(o, "call [json|@file|-]", "Dry-run a transaction without changing state",
		ledger.JSONCodec{}, (*ledger.Client).Call)
}

func newTxCmd(o *rootOptions) *cobra.Command {
	return newPayloadCmd(o, "tx [json|@file|-]", "Submit a transaction",
		ledger.JSONCodec{}, (*ledger.Client).SendTx)
}

func newRawTxCmd(o *rootOptions) *cobra.Command {
	return newPayloadCmd(o, "rawtx [hex|@file|-]", "Submit a pre-encoded raw transaction",
		ledger.HexCodec{Inner: ledger.JSONCodec{}}, (*ledger.Client).SendRawTx)
}
