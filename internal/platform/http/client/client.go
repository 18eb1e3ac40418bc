// Package client provides the outbound HTTP transport used by the ledger client.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/config"
)

var ErrResponseTooLarge = errors.New("response body too large")

// Client is a bounded HTTP client.
//
// Every request dials a fresh TCP connection: keep-alives are disabled and
// nothing is pooled. Redirects are never followed; a 3xx is handed back to
// the caller like any other status.
type Client struct {
	httpClient *http.Client
}

// New creates a new outbound client.
// The client ignores proxy environment variables (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
// A nil cfg leaves dialing unbounded. Request deadlines come from the
// request context.
func New(cfg *config.OutboundHTTPConfig) *Client {
	if cfg == nil {
		cfg = &config.OutboundHTTPConfig{}
	}

	dialer := &net.Dialer{
		Timeout: time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond,
	}

	transport := &http.Transport{
		// Explicitly ignore proxy environment variables
		Proxy:             nil,
		DialContext:       dialer.DialContext,
		DisableKeepAlives: true,
		MaxIdleConns:      0,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Do performs an HTTP request.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// ReadLimited reads r to EOF and closes it when it is an io.Closer.
// A limit of 0 or less reads without bound; otherwise bodies longer than
// limit fail with ErrResponseTooLarge.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	if rc, ok := r.(io.Closer); ok {
		defer rc.Close()
	}
	if limit <= 0 {
		return io.ReadAll(r)
	}

	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrResponseTooLarge, limit)
	}
	return body, nil
}

// ContextClient wraps Client to provide a context-first Do method.
// This adapts the Client to the HTTPClient interface.
type ContextClient struct {
	client *Client
}

// NewContextClient creates a ContextClient adapter.
func NewContextClient(c *Client) *ContextClient {
	return &ContextClient{client: c}
}

// Do performs an HTTP request, using the provided context.
func (c *ContextClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(ctx))
}
