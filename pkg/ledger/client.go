package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/config"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/hostport"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/http/client"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/logutil"
)

// RequestIDHeader carries a random ID per request so client and server
// log lines can be correlated.
const RequestIDHeader = "X-Request-Id"

// Client is a handle on one ledger node. It is immutable after New and safe
// for concurrent use.
type Client struct {
	host string
	port int
	opts options
	log  *slog.Logger
	http HTTPClient
}

// New returns a client for host:port. It validates its arguments but
// performs no network activity.
func New(host string, port int, opts ...Option) (*Client, error) {
	if err := hostport.ValidateHost(host); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := hostport.ValidatePort(port); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout < 0 || o.connectTimeout < 0 || o.maxResponseBytes < 0 {
		return nil, fmt.Errorf("%w: negative timeout or size limit", ErrInvalidConfig)
	}
	if o.policy != StatusStrict && o.policy != StatusPassthrough {
		return nil, fmt.Errorf("%w: unknown status policy %v", ErrInvalidConfig, o.policy)
	}

	c := &Client{
		host: host,
		port: port,
		opts: o,
		log:  logutil.DefaultIfNil(o.logger),
		http: o.httpClient,
	}
	if c.http == nil {
		// The request timeout is enforced per call through the context.
		c.http = client.NewContextClient(client.New(&config.OutboundHTTPConfig{
			ConnectTimeoutMS: int(o.connectTimeout / time.Millisecond),
		}))
	}
	return c, nil
}

// Host returns the configured host.
func (c *Client) Host() string { return c.host }

// Port returns the configured port.
func (c *Client) Port() int { return c.port }

// Addr returns host:port.
func (c *Client) Addr() string { return hostport.Join(c.host, c.port) }

// StatusPolicy returns the configured status policy.
func (c *Client) StatusPolicy() StatusPolicy { return c.opts.policy }

// GetAccount fetches one account.
func (c *Client) GetAccount(ctx context.Context, address string) ([]byte, error) {
	return c.do(ctx, c.getAccountRequest(address))
}

// GetAccounts fetches all accounts controlled by the node.
func (c *Client) GetAccounts(ctx context.Context) ([]byte, error) {
	return c.do(ctx, c.getAccountsRequest())
}

// Call executes a read-only call without changing ledger state.
func (c *Client) Call(ctx context.Context, tx Payload) ([]byte, error) {
	return c.do(ctx, c.callRequest(tx))
}

// SendTx submits a transaction for the node to sign.
func (c *Client) SendTx(ctx context.Context, tx Payload) ([]byte, error) {
	return c.do(ctx, c.sendTxRequest(tx))
}

// SendRawTx submits a transaction the caller has already encoded.
func (c *Client) SendRawTx(ctx context.Context, tx Payload) ([]byte, error) {
	return c.do(ctx, c.sendRawTxRequest(tx))
}

// GetReceipt fetches the receipt of a submitted transaction.
func (c *Client) GetReceipt(ctx context.Context, txHash string) ([]byte, error) {
	return c.do(ctx, c.getReceiptRequest(txHash))
}

// Info fetches node status.
func (c *Client) Info(ctx context.Context) ([]byte, error) {
	return c.do(ctx, c.infoRequest())
}

// GetAccountAsync is the asynchronous form of GetAccount.
func (c *Client) GetAccountAsync(ctx context.Context, address string) *Task {
	return c.start(ctx, c.getAccountRequest(address))
}

// GetAccountsAsync is the asynchronous form of GetAccounts.
func (c *Client) GetAccountsAsync(ctx context.Context) *Task {
	return c.start(ctx, c.getAccountsRequest())
}

// CallAsync is the asynchronous form of Call.
func (c *Client) CallAsync(ctx context.Context, tx Payload) *Task {
	return c.start(ctx, c.callRequest(tx))
}

// SendTxAsync is the asynchronous form of SendTx.
func (c *Client) SendTxAsync(ctx context.Context, tx Payload) *Task {
	return c.start(ctx, c.sendTxRequest(tx))
}

// SendRawTxAsync is the asynchronous form of SendRawTx.
func (c *Client) SendRawTxAsync(ctx context.Context, tx Payload) *Task {
	return c.start(ctx, c.sendRawTxRequest(tx))
}

// GetReceiptAsync is the asynchronous form of GetReceipt.
func (c *Client) GetReceiptAsync(ctx context.Context, txHash string) *Task {
	return c.start(ctx, c.getReceiptRequest(txHash))
}

// InfoAsync is the asynchronous form of Info.
func (c *Client) InfoAsync(ctx context.Context) *Task {
	return c.start(ctx, c.infoRequest())
}

func (c *Client) start(ctx context.Context, req Request) *Task {
	return startTask(ctx, req, c.do)
}

// do runs one request to completion.
func (c *Client) do(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()
	body, err := c.roundTrip(ctx, req)
	if c.opts.observer != nil {
		c.opts.observer.ObserveRequest(string(req.Op), outcome(err), time.Since(start))
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, req Request) ([]byte, error) {
	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	target := req.URL()
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, "http://"+target.Host+"/", body)
	if err != nil {
		return nil, &TransportError{Op: req.Op, Err: err}
	}
	httpReq.URL = target
	reqID := uuid.NewString()
	httpReq.Header.Set(RequestIDHeader, reqID)
	if c.opts.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.opts.userAgent)
	}

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return nil, &TransportError{Op: req.Op, Err: err}
	}

	c.log.Info("ledger request",
		"method", req.Method,
		"host", req.Host,
		"port", req.Port,
		"path", req.Path,
		"status", resp.StatusCode,
		"request_id", reqID,
	)

	data, err := client.ReadLimited(resp.Body, c.opts.maxResponseBytes)
	if err != nil {
		return nil, &TransportError{Op: req.Op, Err: err}
	}

	if c.opts.policy == StatusStrict && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return nil, &StatusError{Op: req.Op, StatusCode: resp.StatusCode, Body: data}
	}
	return data, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case IsStatusError(err):
		return OutcomeStatusError
	default:
		return OutcomeTransportError
	}
}
