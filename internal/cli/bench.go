package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/metrics"
	"github.com/MahdiBaghbani/ledgerclient-go/pkg/ledger"
)

type benchOptions struct {
	requests    int
	concurrency int
	op          string
}

func newBenchCmd(o *rootOptions) *cobra.Command {
	b := &benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Issue concurrent read requests and report latency",
		Long: `Issue --requests read calls with at most --concurrency in flight and
print per-outcome counts and latency quantiles. Failed requests are counted,
not fatal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return b.run(cmd, o)
		},
	}
	cmd.Flags().IntVarP(&b.requests, "requests", "n", 100, "Total number of requests")
	cmd.Flags().IntVarP(&b.concurrency, "concurrency", "c", 8, "Maximum requests in flight")
	cmd.Flags().StringVar(&b.op, "op", "accounts", "Operation to issue: accounts or info")
	return cmd
}

func (b *benchOptions) run(cmd *cobra.Command, o *rootOptions) error {
	if b.requests <= 0 || b.concurrency <= 0 {
		return fmt.Errorf("--requests and --concurrency must be positive")
	}

	reg := prometheus.NewRegistry()
	bo := *o
	bo.observer = metrics.NewClientMetrics(reg)
	c, err := bo.client(cmd)
	if err != nil {
		return err
	}

	var call func(ctx context.Context) ([]byte, error)
	switch b.op {
	case "accounts":
		call = c.GetAccounts
	case "info":
		call = c.Info
	default:
		return fmt.Errorf("unknown --op %q: must be accounts or info", b.op)
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(b.concurrency)
	for range b.requests {
		g.Go(func() error {
			_, _ = call(ctx)
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	return writeBenchReport(cmd.OutOrStdout(), families, b.requests, elapsed)
}

// writeBenchReport prints request counts by outcome and latency quantiles
// from the client metrics families.
func writeBenchReport(w io.Writer, families []*dto.MetricFamily, total int, elapsed time.Duration) error {
	fmt.Fprintf(w, "requests: %d in %s (%.1f req/s)\n", total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())

	for _, mf := range families {
		switch mf.GetName() {
		case "ledger_client_requests_total":
			outcomes := map[string]float64{}
			for _, m := range mf.GetMetric() {
				outcomes[label(m, "outcome")] += m.GetCounter().GetValue()
			}
			keys := make([]string, 0, len(outcomes))
			for k := range outcomes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "outcome %s: %.0f\n", k, outcomes[k])
			}

		case "ledger_client_request_duration_seconds":
			for _, m := range mf.GetMetric() {
				s := m.GetSummary()
				if s.GetSampleCount() == 0 {
					continue
				}
				mean := time.Duration(s.GetSampleSum() / float64(s.GetSampleCount()) * float64(time.Second))
				fmt.Fprintf(w, "latency %s: mean %s", label(m, "op"), mean.Round(time.Microsecond))
				for _, q := range s.GetQuantile() {
					d := time.Duration(q.GetValue() * float64(time.Second))
					fmt.Fprintf(w, " p%g %s", q.GetQuantile()*100, d.Round(time.Microsecond))
				}
				fmt.Fprintln(w)
			}
		}
	}
	return nil
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

var _ ledger.Observer = (*metrics.ClientMetrics)(nil)
