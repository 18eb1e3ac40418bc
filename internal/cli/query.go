package cli

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newAccountCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "account <address>",
		Short: "Fetch one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client(cmd)
			if err != nil {
				return err
			}
			body, err := c.GetAccount(cmd.Context(), args[0])
			return printBody(cmd, body, err)
		},
	}
}

func newAccountsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client(cmd)
			if err != nil {
				return err
			}
			body, err := c.GetAccounts(cmd.Context())
			return printBody(cmd, body, err)
		},
	}
}

func newInfoCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show node information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client(cmd)
			if err != nil {
				return err
			}
			body, err := c.Info(cmd.Context())
			return printBody(cmd, body, err)
		},
	}
}

func newReceiptCmd(o *rootOptions) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "receipt <tx-hash>...",
		Short: "Fetch transaction receipts",
		Long: `Fetch one or more transaction receipts. Requests run concurrently and
bodies are printed in argument order. The first failure cancels the rest.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client(cmd)
			if err != nil {
				return err
			}

			bodies := make([][]byte, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			if concurrency > 0 {
				g.SetLimit(concurrency)
			}
			for i, hash := range args {
				g.Go(func() error {
					body, err := c.GetReceipt(ctx, hash)
					if err != nil {
						return err
					}
					bodies[i] = body
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return printBody(cmd, nil, err)
			}

			for _, body := range bodies {
				if err := printBody(cmd, body, nil); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 8, "Maximum concurrent requests (0 = unlimited)")
	return cmd
}
