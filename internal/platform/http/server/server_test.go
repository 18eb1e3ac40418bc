package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/cache/memory"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/config"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/metrics"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/ratelimit"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/api"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/chain"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store"
	_ "github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/store/memory"
	"github.com/MahdiBaghbani/ledgerclient-go/pkg/ledger"
)

const (
	alice = "0x629007eb99ff5c3539ada8a5800847eacfc25727"
	bob   = "0xe32e14de8b81d8d3aedacb1868619c74a68feab0"
)

type testServer struct {
	srv     *Server
	reg     *prometheus.Registry
	metrics *metrics.ServerMetrics
	host    string
	port    int
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// startServer boots a sandbox on a loopback port with one funded account.
func startServer(t *testing.T, mutate func(*config.SandboxConfig), opts ...Option) *testServer {
	t.Helper()

	cfg := config.DevConfig().Sandbox
	cfg.ListenAddr = "127.0.0.1:0"
	if mutate != nil {
		mutate(&cfg)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewServerMetrics(reg)

	s, err := store.New(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	c := chain.New(s, "memory", chain.WithAccountsGauge(m))
	g, err := chain.ReadGenesis(strings.NewReader(`{"alloc":{"` + alice + `":{"balance":"1000000"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyGenesis(context.Background(), g); err != nil {
		t.Fatal(err)
	}

	srv, err := New(&cfg, quietLogger(), api.NewHandler(c, 0), m, reg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		t.Fatal(err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Serve returned %v, want ErrServerClosed", err)
		}
	})

	addr := ln.Addr().(*net.TCPAddr)
	return &testServer{srv: srv, reg: reg, metrics: m, host: "127.0.0.1", port: addr.Port}
}

func TestNew_RequiresMetrics(t *testing.T) {
	cfg := config.DevConfig().Sandbox
	if _, err := New(&cfg, nil, nil, nil, nil); !errors.Is(err, ErrMissingMetrics) {
		t.Errorf("expected ErrMissingMetrics, got %v", err)
	}
}

func TestServer_ClientRoundTrip(t *testing.T) {
	ts := startServer(t, nil)
	ctx := context.Background()

	client, err := ledger.New(ts.host, ts.port, ledger.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	tx, err := ledger.JSONCodec{}.Encode(ledger.SendTxArgs{From: alice, To: ptr(bob), Value: bigInt(42)})
	if err != nil {
		t.Fatal(err)
	}
	body, err := client.SendTx(ctx, tx)
	if err != nil {
		t.Fatalf("SendTx: %v", err)
	}
	res, err := ledger.Decode[ledger.TxHashResult](body)
	if err != nil {
		t.Fatal(err)
	}

	body, err = client.GetReceipt(ctx, res.TxHash)
	if err != nil {
		t.Fatalf("GetReceipt: %v", err)
	}
	receipt, err := ledger.Decode[ledger.Receipt](body)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.TransactionHash != res.TxHash || receipt.Value.Int64() != 42 {
		t.Errorf("unexpected receipt %+v", receipt)
	}

	body, err = client.GetAccount(ctx, bob)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct, _ := ledger.Decode[ledger.Account](body); acct.Balance.Int64() != 42 {
		t.Errorf("bob balance = %v, want 42", acct.Balance)
	}

	raw, _ := ledger.HexCodec{}.Encode(ledger.SendTxArgs{From: alice, To: ptr(bob), Value: bigInt(1)})
	if _, err := client.SendRawTx(ctx, raw); err != nil {
		t.Fatalf("SendRawTx: %v", err)
	}

	tasks := []*ledger.Task{client.GetAccountsAsync(ctx), client.InfoAsync(ctx), client.CallAsync(ctx, tx)}
	for _, task := range tasks {
		if _, err := task.Wait(ctx); err != nil {
			t.Errorf("%s: %v", task.Request().Op, err)
		}
	}
}

func TestServer_StrictStatusError(t *testing.T) {
	ts := startServer(t, nil)

	client, err := ledger.New(ts.host, ts.port, ledger.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.GetReceipt(context.Background(), "0xdead")
	var se *ledger.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusNotFound || !strings.Contains(string(se.Body), api.ReasonNotFound) {
		t.Errorf("unexpected status error %d %s", se.StatusCode, se.Body)
	}
}

func TestServer_InjectedFailures(t *testing.T) {
	ts := startServer(t, func(c *config.SandboxConfig) {
		c.Faults = config.FaultsConfig{FailRate: 0.5, FailCode: 503}
	}, WithFaultRand(func() float64 { return 0 }))

	client, err := ledger.New(ts.host, ts.port,
		ledger.WithLogger(quietLogger()),
		ledger.WithStatusPolicy(ledger.StatusPassthrough))
	if err != nil {
		t.Fatal(err)
	}

	body, err := client.Info(context.Background())
	if err != nil {
		t.Fatalf("passthrough should deliver the failure body: %v", err)
	}
	var env api.ErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("failure body is not an error envelope: %v (%q)", err, body)
	}
	if env.Error.ReasonCode != api.ReasonFailureInjected || env.Error.Code != "Service Unavailable" {
		t.Errorf("unexpected envelope %+v", env.Error)
	}

	// Health checks bypass fault injection.
	resp, err := http.Get("http://" + ts.srv.Addr().String() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", resp.StatusCode)
	}

	want := `
# HELP ledger_sandbox_injected_failures_total Total number of failures injected by the fault middleware
# TYPE ledger_sandbox_injected_failures_total counter
ledger_sandbox_injected_failures_total{code="503"} 1
`
	if err := testutil.GatherAndCompare(ts.reg, strings.NewReader(want), "ledger_sandbox_injected_failures_total"); err != nil {
		t.Error(err)
	}
}

func TestServer_RateLimited(t *testing.T) {
	counter := memory.New(time.Minute, 0)
	t.Cleanup(func() { counter.Close() })
	limiter := ratelimit.New(counter, config.RateLimitConfig{RequestsPerWindow: 1, WindowSeconds: 60}, quietLogger())
	ts := startServer(t, nil, WithRateLimiter(limiter))

	client, err := ledger.New(ts.host, ts.port, ledger.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := client.Info(ctx); err != nil {
		t.Fatalf("first call: %v", err)
	}

	_, err = client.Info(ctx)
	var se *ledger.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", se.StatusCode)
	}
	var env api.ErrorEnvelope
	if err := json.Unmarshal(se.Body, &env); err != nil {
		t.Fatalf("decode envelope: %v (%q)", err, se.Body)
	}
	if env.Error.ReasonCode != api.ReasonRateLimited {
		t.Errorf("reason = %q", env.Error.ReasonCode)
	}

	// Health checks are not budgeted.
	for i := 0; i < 2; i++ {
		resp, err := http.Get("http://" + ts.srv.Addr().String() + "/healthz")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("healthz = %d", resp.StatusCode)
		}
	}

	want := `
# HELP ledger_sandbox_rate_limited_total Total number of requests rejected by the rate limiter
# TYPE ledger_sandbox_rate_limited_total counter
ledger_sandbox_rate_limited_total 1
`
	if err := testutil.GatherAndCompare(ts.reg, strings.NewReader(want), "ledger_sandbox_rate_limited_total"); err != nil {
		t.Error(err)
	}
}

func TestServer_BlockAndHTMLRoutesNotServed(t *testing.T) {
	ts := startServer(t, nil)

	for _, path := range []string{"/block/0xabc", "/blockById/1", "/html/info"} {
		resp, err := http.Get("http://" + ts.srv.Addr().String() + path)
		if err != nil {
			t.Fatal(err)
		}
		var env api.ErrorEnvelope
		err = json.NewDecoder(resp.Body).Decode(&env)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("%s: decode envelope: %v", path, err)
		}
		if resp.StatusCode != http.StatusNotFound || env.Error.ReasonCode != api.ReasonNotFound {
			t.Errorf("%s = %d %q, want 404 not_found", path, resp.StatusCode, env.Error.ReasonCode)
		}
	}
}

func TestServer_RequestIDAdopted(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cfg := config.DevConfig().Sandbox
	srv, err := New(&cfg, logger, nil, metrics.NewServerMetrics(prometheus.NewRegistry()), nil)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(ledger.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"request_id":"abc-123"`) {
		t.Errorf("access log should carry the inbound request id, got %s", buf.String())
	}
}

func TestServer_RoutesAndMetrics(t *testing.T) {
	ts := startServer(t, nil)
	h := ts.srv.Handler()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/info", http.StatusOK},
		{http.MethodGet, "/accounts", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodDelete, "/info", http.StatusMethodNotAllowed},
		{http.MethodOptions, "/tx", http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`ledger_sandbox_http_requests_total{code="200",method="GET",route="/info"} 1`,
		`ledger_sandbox_http_requests_total{code="404",method="GET",route="unmatched"} 1`,
		`ledger_sandbox_accounts 1`,
	} {
		if !strings.Contains(string(out), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServer_MaxConnections(t *testing.T) {
	ts := startServer(t, func(c *config.SandboxConfig) { c.MaxConnections = 1 })

	client, err := ledger.New(ts.host, ts.port, ledger.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	// Keep-alives are off in the client, so each call frees its slot.
	for i := 0; i < 3; i++ {
		if _, err := client.Info(context.Background()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
}

func ptr[T any](v T) *T { return &v }

func bigInt(v int64) *big.Int { return big.NewInt(v) }
