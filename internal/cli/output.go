package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MahdiBaghbani/ledgerclient-go/pkg/ledger"
)

// printBody writes a response body to stdout, followed by a newline when the
// body lacks one. Under the strict policy a StatusError still prints the
// server's body so the caller sees the error envelope.
func printBody(cmd *cobra.Command, body []byte, err error) error {
	var se *ledger.StatusError
	if errors.As(err, &se) {
		body = se.Body
	} else if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, werr := out.Write(body); werr != nil {
		return werr
	}
	if len(body) > 0 && body[len(body)-1] != '\n' {
		fmt.Fprintln(out)
	}
	return err
}

// readPayload resolves a payload argument: "@path" reads a file, "-" reads
// stdin, anything else is used literally.
func readPayload(cmd *cobra.Command, arg string) (ledger.Payload, error) {
	switch {
	case arg == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return ledger.Payload(strings.TrimSpace(string(b))), nil
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		return ledger.Payload(strings.TrimSpace(string(b))), nil
	default:
		return ledger.Payload(arg), nil
	}
}
