package client_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/config"
	httpclient "github.com/MahdiBaghbani/ledgerclient-go/internal/platform/http/client"
)

func get(t *testing.T, ctx context.Context, c *httpclient.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return c.Do(req)
}

func TestClient_ProxyEnvIgnored(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://proxy.invalid:8080")
	t.Setenv("http_proxy", "http://proxy.invalid:8080")
	t.Setenv("NO_PROXY", "")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("direct"))
	}))
	defer server.Close()

	client := httpclient.New(&config.OutboundHTTPConfig{ConnectTimeoutMS: 2000})

	// If the proxy were used this would fail: proxy.invalid does not resolve.
	resp, err := get(t, context.Background(), client, server.URL)
	if err != nil {
		t.Fatalf("expected direct connection, got error: %v", err)
	}
	body, err := httpclient.ReadLimited(resp.Body, 0)
	if err != nil {
		t.Fatalf("ReadLimited: %v", err)
	}
	if string(body) != "direct" {
		t.Errorf("body = %q, want direct", body)
	}
}

func TestClient_NewConnectionPerRequest(t *testing.T) {
	var conns atomic.Int32
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	server.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			conns.Add(1)
		}
	}
	server.Start()
	defer server.Close()

	client := httpclient.New(nil)
	for i := 0; i < 3; i++ {
		resp, err := get(t, context.Background(), client, server.URL)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if _, err := httpclient.ReadLimited(resp.Body, 0); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}

	if got := conns.Load(); got != 3 {
		t.Errorf("expected 3 connections, got %d", got)
	}
}

func TestClient_RedirectsNotFollowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/moved" {
			http.Redirect(w, r, "/target", http.StatusFound)
			return
		}
		w.Write([]byte("target"))
	}))
	defer server.Close()

	client := httpclient.New(nil)
	resp, err := get(t, context.Background(), client, server.URL+"/moved")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected 302 returned as-is, got %d", resp.StatusCode)
	}
}

func TestClient_DeadlineFromContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := httpclient.New(&config.OutboundHTTPConfig{ConnectTimeoutMS: 1000})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := get(t, ctx, client, server.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestReadLimited(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		limit   int64
		wantErr error
	}{
		{"unbounded", strings.Repeat("x", 4096), 0, nil},
		{"exactly at limit", "12345", 5, nil},
		{"over limit", "123456", 5, httpclient.ErrResponseTooLarge},
		{"empty", "", 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := httpclient.ReadLimited(io.NopCloser(strings.NewReader(tt.body)), tt.limit)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.body {
				t.Errorf("body mismatch: got %d bytes, want %d", len(got), len(tt.body))
			}
		})
	}
}

func TestContextClient_UsesContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cc := httpclient.NewContextClient(httpclient.New(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	if _, err := cc.Do(ctx, req); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
