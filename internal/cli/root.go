// Package cli implements the ledgerctl command tree.
package cli

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/config"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/ledgerclient-go/pkg/ledger"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath     string
	mode           string
	host           string
	port           string
	timeout        time.Duration
	connectTimeout time.Duration
	statusPolicy   string
	loggingLevel   string

	// observer, when set, is attached to every client the command builds.
	observer ledger.Observer
}

// NewRootCmd builds the ledgerctl command tree.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Command-line client for the ledger service",
		Long: `Command-line client for the ledger service.

Each command issues one request (or a batch, for receipt and bench) and
prints the response body verbatim to stdout. Diagnostics go to stderr.

Examples:
  # Query an account against a local sandbox
  ledgerctl --port 8080 account 0x629007eb99ff5c3539ada8a5800847eacfc25727

  # Submit a transfer built from flags
  ledgerctl tx --from 0x6290... --to 0xe32e... --value 1000

  # Submit a pre-built transaction from a file
  ledgerctl tx @transfer.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	o.bindFlags(root.PersistentFlags())

	root.AddCommand(
		newAccountCmd(o),
		newAccountsCmd(o),
		newCallCmd(o),
		newTxCmd(o),
		newRawTxCmd(o),
		newReceiptCmd(o),
		newInfoCmd(o),
		newBenchCmd(o),
	)
	return root
}

// bindFlags registers the persistent flags on f.
func (o *rootOptions) bindFlags(f *pflag.FlagSet) {
	f.StringVar(&o.configPath, "config", "", "Path to TOML config file (optional)")
	f.StringVar(&o.mode, "mode", "", "Operating mode: strict, compat, or dev (overrides config)")
	f.StringVar(&o.host, "host", "", "Ledger service host (overrides config)")
	f.StringVar(&o.port, "port", "", "Ledger service port (overrides config)")
	f.DurationVar(&o.timeout, "timeout", 0, "Per-request timeout, e.g. 5s; 0 keeps the configured value")
	f.DurationVar(&o.connectTimeout, "connect-timeout", 0, "TCP connect timeout, e.g. 500ms; 0 keeps the configured value")
	f.StringVar(&o.statusPolicy, "status-policy", "", "Non-2xx handling: strict or passthrough (overrides config)")
	f.StringVar(&o.loggingLevel, "logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
}

// Execute runs ledgerctl with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// load resolves configuration with precedence mode preset -> file -> flags.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	overrides := config.FlagOverrides{
		Host:         &o.host,
		Port:         &o.port,
		StatusPolicy: &o.statusPolicy,
		LoggingLevel: &o.loggingLevel,
	}
	if cmd.Flags().Changed("timeout") {
		ms := strconv.FormatInt(o.timeout.Milliseconds(), 10)
		overrides.TimeoutMS = &ms
	}
	if cmd.Flags().Changed("connect-timeout") {
		ms := strconv.FormatInt(o.connectTimeout.Milliseconds(), 10)
		overrides.ConnectTimeoutMS = &ms
	}

	bootstrap := logutil.New(cmd.ErrOrStderr(), "warn", "text")
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath:    o.configPath,
		ModeFlag:      o.mode,
		FlagOverrides: overrides,
		Logger:        bootstrap,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logutil.New(cmd.ErrOrStderr(), cfg.Logging.Level, "text"), nil
}

// client builds a ledger client from the resolved configuration.
func (o *rootOptions) client(cmd *cobra.Command) (*ledger.Client, error) {
	cfg, logger, err := o.load(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := ClientOptions(cfg.Client, logger)
	if err != nil {
		return nil, err
	}
	if o.observer != nil {
		opts = append(opts, ledger.WithObserver(o.observer))
	}
	return ledger.New(cfg.Client.Host, cfg.Client.Port, opts...)
}

// ClientOptions maps the [client] config section onto ledger options.
func ClientOptions(c config.ClientConfig, logger *slog.Logger) ([]ledger.Option, error) {
	policy, err := ledger.ParseStatusPolicy(c.StatusPolicy)
	if err != nil {
		return nil, err
	}
	return []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithTimeout(c.Timeout()),
		ledger.WithConnectTimeout(c.ConnectTimeout()),
		ledger.WithStatusPolicy(policy),
		ledger.WithMaxResponseBytes(c.MaxResponseBytes),
		ledger.WithUserAgent(c.UserAgent),
	}, nil
}
