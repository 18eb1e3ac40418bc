package ledger

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/http/client"
)

// Defaults applied by New.
const (
	DefaultTimeout          = 30 * time.Second
	DefaultConnectTimeout   = 2 * time.Second
	DefaultMaxResponseBytes = 16 << 20
)

// StatusPolicy decides what happens to non-2xx responses.
type StatusPolicy int

const (
	// StatusStrict returns a *StatusError for non-2xx responses.
	StatusStrict StatusPolicy = iota
	// StatusPassthrough delivers every complete response body as a result,
	// whatever its status code.
	StatusPassthrough
)

func (p StatusPolicy) String() string {
	switch p {
	case StatusStrict:
		return "strict"
	case StatusPassthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("StatusPolicy(%d)", int(p))
	}
}

// ParseStatusPolicy parses "strict" or "passthrough".
func ParseStatusPolicy(s string) (StatusPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return StatusStrict, nil
	case "passthrough":
		return StatusPassthrough, nil
	default:
		return 0, fmt.Errorf("%w: unknown status policy %q", ErrInvalidConfig, s)
	}
}

// HTTPClient sends requests on behalf of the Client.
type HTTPClient = client.HTTPClient

// Observer receives one callback per settled request.
type Observer interface {
	ObserveRequest(op, outcome string, d time.Duration)
}

// Outcome labels passed to Observer.
const (
	OutcomeOK             = "ok"
	OutcomeStatusError    = "status_error"
	OutcomeTransportError = "transport_error"
	OutcomeCanceled       = "canceled"
)

type options struct {
	logger           *slog.Logger
	timeout          time.Duration
	connectTimeout   time.Duration
	policy           StatusPolicy
	maxResponseBytes int64
	httpClient       HTTPClient
	observer         Observer
	userAgent        string
}

func defaultOptions() options {
	return options{
		timeout:          DefaultTimeout,
		connectTimeout:   DefaultConnectTimeout,
		policy:           StatusStrict,
		maxResponseBytes: DefaultMaxResponseBytes,
	}
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger for the per-request diagnostic line.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeout bounds each request from dial to the last body byte.
// 0 disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithConnectTimeout bounds the TCP dial. 0 leaves it unbounded.
// Ignored when WithHTTPClient is used.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithStatusPolicy selects how non-2xx responses are reported.
func WithStatusPolicy(p StatusPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithMaxResponseBytes caps the response body size. 0 removes the cap.
func WithMaxResponseBytes(n int64) Option {
	return func(o *options) { o.maxResponseBytes = n }
}

// WithHTTPClient replaces the default transport.
func WithHTTPClient(h HTTPClient) Option {
	return func(o *options) { o.httpClient = h }
}

// WithObserver registers an Observer, typically Prometheus metrics.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithUserAgent sets the User-Agent header. Empty leaves Go's default.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}
